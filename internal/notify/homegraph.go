package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HomeGraphSink reports state to the platform's home-graph endpoint over
// HTTP. The sample talks to a configurable URL rather than the real gRPC
// surface; the payload shape matches ReportStateAndNotification.
type HomeGraphSink struct {
	endpoint string
	client   *http.Client
}

func NewHomeGraphSink(endpoint string) *HomeGraphSink {
	return &HomeGraphSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *HomeGraphSink) Name() string { return "homegraph" }

func (s *HomeGraphSink) Push(ctx context.Context, n Notification) error {
	body := map[string]any{
		"requestId":   uuid.NewString(),
		"agentUserId": n.UserID,
		"payload": map[string]any{
			"devices": map[string]any{
				"states": map[string]any{
					n.DeviceID: n.States,
				},
			},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode report state: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build report state request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("report state: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("report state: unexpected status %d", res.StatusCode)
	}
	return nil
}
