package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"beacon-scanner/internal/models"
)

// Transport performs a single delivery attempt. It never retries on its
// own; retry orchestration lives in the Scheduler.
type Transport interface {
	Post(ctx context.Context, endpoint string, request *models.LoggingRequest) error
}

// HTTPTransport posts the logging request as a JSON body.
type HTTPTransport struct {
	client *http.Client
	logger zerolog.Logger
}

func NewHTTPTransport(timeout time.Duration, logger zerolog.Logger) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (t *HTTPTransport) Post(ctx context.Context, endpoint string, request *models.LoggingRequest) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal logging request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build logging request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post logs to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}

	t.logger.Debug().
		Str("endpoint", endpoint).
		Int("beacons", len(request.Beacons)).
		Msg("logs delivered to collector")

	return nil
}

var _ Transport = (*HTTPTransport)(nil)
