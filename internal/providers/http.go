package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var tracer = otel.Tracer("cascadeflow.providers")

// DoRequest issues a JSON POST to a back end inside an OTel span carrying
// W3C trace-context propagation headers, mirroring the cascade executor's
// own span-per-stage convention: one span per outbound provider call.
func DoRequest(ctx context.Context, client *http.Client, url, providerID, model string, headers map[string]string, payload any) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "providers.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("cascadeflow.provider", providerID),
		attribute.String("cascadeflow.model", model),
	)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return respBody, nil
}
