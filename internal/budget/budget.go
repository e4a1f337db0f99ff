// Package budget tracks per-scope spend ceilings (a request's own budget
// ceiling, or a tier/workflow's configured max_budget) and answers whether
// a projected cost still fits (spec.md §4.6: "the sum of draft_cost +
// projected_verifier_cost is checked against the remaining budget before
// each outbound call"). Scope keys are caller-defined (e.g. a tenant ID, a
// workflow name, or a request ID for a one-shot request-level ceiling).
package budget

import (
	"sync"

	"github.com/jordanhubbard/cascadeflow/internal/cferrors"
)

// ledger is one scope's running total.
type ledger struct {
	limit float64
	spent float64
}

// Tracker is a concurrency-safe, in-memory spend tracker. It does not
// persist across process restarts, and no package saves or reloads its
// ledgers.
type Tracker struct {
	mu      sync.Mutex
	ledgers map[string]*ledger
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{ledgers: make(map[string]*ledger)}
}

// Fits reports whether projectedCost can still be charged against scope's
// ceiling without exceeding it. It does not reserve the amount; callers
// that intend to charge should follow a true result with Charge.
func (t *Tracker) Fits(scope string, limit, projectedCost float64) bool {
	if limit <= 0 {
		return true // no ceiling configured
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.get(scope, limit)
	return l.spent+projectedCost <= l.limit
}

// Charge records actualCost against scope's ledger. It always succeeds —
// overspend (e.g. the budget-forced-draft-acceptance path of spec.md §4.6)
// is recorded, not rejected, because the executor has already committed to
// the call by the time cost is known.
func (t *Tracker) Charge(scope string, limit, actualCost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.get(scope, limit)
	l.spent += actualCost
}

// Remaining reports how much of scope's ceiling is left (may be negative
// after an overspend charge).
func (t *Tracker) Remaining(scope string, limit float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.get(scope, limit)
	return l.limit - l.spent
}

// CheckDrafterFits returns a BudgetExceededError when even the drafter call
// cannot fit within scope's ceiling (spec.md §4.6: "If even the drafter
// cannot fit, the call fails with a budget-exceeded error").
func (t *Tracker) CheckDrafterFits(scope string, limit, drafterCost float64) error {
	if t.Fits(scope, limit, drafterCost) {
		return nil
	}
	t.mu.Lock()
	l := t.get(scope, limit)
	t.mu.Unlock()
	return &cferrors.BudgetExceededError{Current: l.spent, Limit: l.limit, Remaining: l.limit - l.spent}
}

func (t *Tracker) get(scope string, limit float64) *ledger {
	l, ok := t.ledgers[scope]
	if !ok {
		l = &ledger{limit: limit}
		t.ledgers[scope] = l
	} else if limit > 0 {
		l.limit = limit // later callers may refresh the configured ceiling
	}
	return l
}

// Reset clears scope's ledger; the next call for scope starts from zero
// spend.
func (t *Tracker) Reset(scope string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ledgers, scope)
}
