package classifier

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Keyword tiers per spec.md §4.2: "very strong / strong / moderate / weak"
// fixed weights, word-boundary matched, normalized by sqrt(matches).
const (
	tierVeryStrong = 1.5
	tierStrong     = 1.0
	tierModerate   = 0.7
	tierWeak       = 0.3

	domainScoreThreshold = 0.30
)

type keywordTier struct {
	weight   float64
	keywords []string
}

var domainKeywords = map[Domain][]keywordTier{
	DomainCode: {
		{tierVeryStrong, []string{"function", "class", "compile", "stack trace", "segfault", "exception"}},
		{tierStrong, []string{"code", "bug", "refactor", "variable", "algorithm", "repository"}},
		{tierModerate, []string{"python", "golang", "javascript", "program", "script"}},
		{tierWeak, []string{"software", "debug"}},
	},
	DomainData: {
		{tierVeryStrong, []string{"sql query", "dataframe", "etl pipeline"}},
		{tierStrong, []string{"dataset", "pipeline", "schema", "column", "row"}},
		{tierModerate, []string{"data", "table", "csv"}},
		{tierWeak, []string{"spreadsheet"}},
	},
	DomainStructured: {
		{tierVeryStrong, []string{"json schema", "yaml config", "xml document"}},
		{tierStrong, []string{"json", "yaml", "xml", "structured output"}},
		{tierModerate, []string{"format", "parse"}},
		{tierWeak, []string{"field"}},
	},
	DomainRAG: {
		{tierVeryStrong, []string{"retrieval augmented", "vector database", "embedding search"}},
		{tierStrong, []string{"retrieve", "document context", "knowledge base"}},
		{tierModerate, []string{"context", "source document"}},
		{tierWeak, []string{"reference"}},
	},
	DomainConversation: {
		{tierVeryStrong, []string{"as we discussed", "earlier you said", "going back to"}},
		{tierStrong, []string{"you mentioned", "previous message", "continue our"}},
		{tierModerate, []string{"chat", "conversation"}},
		{tierWeak, []string{"hello", "hi there"}},
	},
	DomainTool: {
		{tierVeryStrong, []string{"call the function", "invoke the tool", "use the api"}},
		{tierStrong, []string{"tool call", "function call", "api call"}},
		{tierModerate, []string{"tool", "plugin"}},
		{tierWeak, []string{"action"}},
	},
	DomainCreative: {
		{tierVeryStrong, []string{"write a poem", "write a story", "compose a song"}},
		{tierStrong, []string{"poem", "story", "lyrics", "screenplay"}},
		{tierModerate, []string{"creative", "imagine"}},
		{tierWeak, []string{"fun"}},
	},
	DomainComparison: {
		{tierVeryStrong, []string{"compare and contrast", "which is better"}},
		{tierStrong, []string{"compare", "versus", "difference between"}},
		{tierModerate, []string{"pros and cons", "tradeoff"}},
		{tierWeak, []string{"or"}},
	},
	DomainSummary: {
		{tierVeryStrong, []string{"summarize this", "tl;dr", "give me a summary"}},
		{tierStrong, []string{"summarize", "summary", "condense"}},
		{tierModerate, []string{"shorten", "key points"}},
		{tierWeak, []string{"brief"}},
	},
	DomainTranslation: {
		{tierVeryStrong, []string{"translate this into", "translate to"}},
		{tierStrong, []string{"translate", "translation"}},
		{tierModerate, []string{"in spanish", "in french", "in japanese"}},
		{tierWeak, []string{"language"}},
	},
	DomainMath: {
		{tierVeryStrong, []string{"solve for x", "prove that", "integral of"}},
		{tierStrong, []string{"equation", "derivative", "theorem", "calculate"}},
		{tierModerate, []string{"math", "algebra", "geometry"}},
		{tierWeak, []string{"number"}},
	},
	DomainFactual: {
		{tierVeryStrong, []string{"what year did", "who was the first"}},
		{tierStrong, []string{"what is the capital", "when did", "who invented"}},
		{tierModerate, []string{"fact", "history of"}},
		{tierWeak, []string{"what is"}},
	},
	DomainMedical: {
		{tierVeryStrong, []string{"diagnosis", "symptoms of", "prescribed medication"}},
		{tierStrong, []string{"disease", "treatment", "patient", "clinical"}},
		{tierModerate, []string{"health", "medicine", "doctor"}},
		{tierWeak, []string{"pain"}},
	},
	DomainLegal: {
		{tierVeryStrong, []string{"legal liability", "breach of contract", "statute of limitations"}},
		{tierStrong, []string{"contract", "lawsuit", "plaintiff", "defendant"}},
		{tierModerate, []string{"law", "legal", "regulation"}},
		{tierWeak, []string{"rights"}},
	},
	DomainFinancial: {
		{tierVeryStrong, []string{"balance sheet", "income statement", "capital gains tax"}},
		{tierStrong, []string{"investment", "portfolio", "revenue", "valuation"}},
		{tierModerate, []string{"finance", "budget", "stock"}},
		{tierWeak, []string{"money"}},
	},
	DomainMultimodal: {
		{tierVeryStrong, []string{"in this image", "attached photo", "this screenshot"}},
		{tierStrong, []string{"image", "photo", "screenshot", "diagram"}},
		{tierModerate, []string{"picture", "visual"}},
		{tierWeak, []string{"see the"}},
	},
}

var mcqRe = regexp.MustCompile(`(?mi)^\s*[A-D][.)]\s+`)
var multiTurnMarkers = []string{"as we discussed", "you mentioned", "earlier you said", "going back to", "previous message"}

// ClassifyDomain scores a query against the 17-label domain taxonomy
// (spec.md §4.2): word-boundary keyword matches weighted by tier, each
// domain's raw weight sum normalized by sqrt(match count), capped at 1.0,
// with MCQ and multi-turn detectors applying fixed boosts. Falls back to
// DomainGeneral when no domain clears domainScoreThreshold.
func ClassifyDomain(query string, semanticOverride func(string) (Domain, float64, bool)) DomainResult {
	lower := strings.ToLower(query)
	scores := make(map[Domain]float64, len(domainKeywords))

	for domain, tiers := range domainKeywords {
		sum, matches := 0.0, 0
		for _, tier := range tiers {
			for _, kw := range tier.keywords {
				if containsWord(lower, kw) {
					sum += tier.weight
					matches++
				}
			}
		}
		if matches > 0 {
			scores[domain] = math.Min(sum/math.Sqrt(float64(matches)), 1.0)
		}
	}

	if mcqRe.MatchString(query) {
		best := bestSubjectDomain(scores)
		if best != "" {
			scores[best] = math.Min(scores[best]+0.5, 1.0)
		}
		scores[DomainConversation] = math.Max(scores[DomainConversation]-0.5, 0)
	} else {
		for _, m := range multiTurnMarkers {
			if strings.Contains(lower, m) {
				scores[DomainConversation] = math.Min(scores[DomainConversation]+0.6, 1.0)
				break
			}
		}
	}

	if semanticOverride != nil {
		if domain, confidence, ok := semanticOverride(query); ok {
			return DomainResult{Label: domain, Confidence: confidence, Scores: scores}
		}
	}

	label, confidence := pickDomain(scores)
	return DomainResult{Label: label, Confidence: confidence, Scores: scores}
}

// containsWord reports whether phrase occurs in lower at a word boundary on
// both sides, so "bug" doesn't match inside "debugging".
func containsWord(lower, phrase string) bool {
	from := 0
	for {
		idx := strings.Index(lower[from:], phrase)
		if idx == -1 {
			return false
		}
		idx += from
		end := idx + len(phrase)
		beforeOK := idx == 0 || !isWordRune(rune(lower[idx-1]))
		afterOK := end == len(lower) || !isWordRune(rune(lower[end]))
		if beforeOK && afterOK {
			return true
		}
		from = idx + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func bestSubjectDomain(scores map[Domain]float64) Domain {
	var best Domain
	bestScore := 0.0
	for d, s := range scores {
		if d == DomainConversation {
			continue
		}
		if s > bestScore {
			best, bestScore = d, s
		}
	}
	return best
}

func pickDomain(scores map[Domain]float64) (Domain, float64) {
	var best Domain = DomainGeneral
	bestScore := 0.0
	for d, s := range scores {
		if s > bestScore {
			best, bestScore = d, s
		}
	}
	if bestScore < domainScoreThreshold {
		return DomainGeneral, 0.5
	}
	return best, bestScore
}
