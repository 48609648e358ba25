package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/config"
	"github.com/Veraticus/forecast-flow/internal/model"
	"golang.org/x/time/rate"
)

// WhatsAppChannel sends alerts through the WhatsApp Cloud API.
type WhatsAppChannel struct {
	client   *http.Client
	limiter  *rate.Limiter
	endpoint string
	token    string
	template string
	language string
}

// NewWhatsAppChannel creates a WhatsApp channel from configuration.
func NewWhatsAppChannel(cfg config.WhatsAppConfig) (*WhatsAppChannel, error) {
	if cfg.PhoneNumberID == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: whatsapp phone number ID and access token are required", common.ErrMissingConfig)
	}

	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}

	return &WhatsAppChannel{
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		endpoint: strings.TrimRight(cfg.APIURL, "/") + "/" + cfg.PhoneNumberID + "/messages",
		token:    cfg.AccessToken,
		template: cfg.Template,
		language: cfg.Language,
	}, nil
}

// Name implements Channel.
func (w *WhatsAppChannel) Name() string { return "whatsapp" }

// Recipient implements Channel.
func (w *WhatsAppChannel) Recipient(employee model.Employee) string {
	return strings.TrimPrefix(strings.TrimSpace(employee.PhoneNumber), "+")
}

type whatsAppMessage struct {
	Text             *whatsAppText     `json:"text,omitempty"`
	Template         *whatsAppTemplate `json:"template,omitempty"`
	MessagingProduct string            `json:"messaging_product"`
	To               string            `json:"to"`
	Type             string            `json:"type"`
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppTemplate struct {
	Name     string           `json:"name"`
	Language whatsAppLanguage `json:"language"`
}

type whatsAppLanguage struct {
	Code string `json:"code"`
}

// Send implements Channel with a free-form text message.
func (w *WhatsAppChannel) Send(ctx context.Context, to, subject, body string) error {
	return w.post(ctx, whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &whatsAppText{Body: subject + "\n\n" + body},
	})
}

// Onboard sends the configured template message. WhatsApp only accepts
// free-form messages to recipients who have answered a template within
// the last day.
func (w *WhatsAppChannel) Onboard(ctx context.Context, to string) error {
	if w.template == "" {
		return fmt.Errorf("%w: whatsapp template", common.ErrMissingConfig)
	}
	return w.post(ctx, whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: &whatsAppTemplate{
			Name:     w.template,
			Language: whatsAppLanguage{Code: w.language},
		},
	})
}

func (w *WhatsAppChannel) post(ctx context.Context, msg whatsAppMessage) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return common.Permanent(fmt.Errorf("failed to encode whatsapp message: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(payload))
	if err != nil {
		return common.Permanent(fmt.Errorf("failed to create whatsapp request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err = fmt.Errorf("whatsapp API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case resp.StatusCode >= 500:
		return err
	default:
		return common.Permanent(err)
	}
}
