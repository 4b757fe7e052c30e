package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rmmassage/dispatch/pkg/logging"
)

var telnyxSendTracer = otel.Tracer("rmm.internal.messaging.telnyx_send")

// TelnyxSender posts SMS messages using Telnyx's V2 API.
type TelnyxSender struct {
	apiKey             string
	messagingProfileID string
	from               string
	httpClient         *http.Client
	logger             *logging.Logger
}

// NewTelnyxSender builds a sender for Telnyx V2 API.
func NewTelnyxSender(apiKey, messagingProfileID, from string, logger *logging.Logger) *TelnyxSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TelnyxSender{
		apiKey:             apiKey,
		messagingProfileID: messagingProfileID,
		from:               from,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ SMSSender = (*TelnyxSender)(nil)

// SendSMS dispatches a single SMS via Telnyx V2 API, retrying transient failures.
func (s *TelnyxSender) SendSMS(ctx context.Context, to, body string) error {
	if s.apiKey == "" {
		return errors.New("messaging: telnyx api key missing")
	}
	if to == "" {
		return errors.New("messaging: to required")
	}
	if s.from == "" {
		return errors.New("messaging: from required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("messaging: body required")
	}

	ctx, span := telnyxSendTracer.Start(ctx, "messaging.telnyx.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("rmm.to", to),
		attribute.String("rmm.from", s.from),
	)

	payload := map[string]interface{}{
		"from": s.from,
		"to":   to,
		"text": body,
	}
	if s.messagingProfileID != "" {
		payload["messaging_profile_id"] = s.messagingProfileID
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("messaging: failed to marshal telnyx payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.telnyx.com/v2/messages", bytes.NewReader(bodyBytes))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				s.logger.Info("telnyx sms sent", "to", to, "from", s.from)
				return nil
			}
			var errorBody map[string]interface{}
			if len(respBody) > 0 && json.Unmarshal(respBody, &errorBody) == nil {
				lastErr = fmt.Errorf("telnyx send failed: status %d, body: %v", resp.StatusCode, errorBody)
			} else {
				lastErr = fmt.Errorf("telnyx send failed: status %d", resp.StatusCode)
			}
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
				break
			}
		}

		if attempt < 3 {
			time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		s.logger.Error("failed to send telnyx sms", "error", lastErr, "to", to)
	}
	return lastErr
}
