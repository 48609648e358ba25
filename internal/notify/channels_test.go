package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/config"
	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWhatsApp(t *testing.T, handler http.HandlerFunc) *WhatsAppChannel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ch, err := NewWhatsAppChannel(config.WhatsAppConfig{
		APIURL:        server.URL + "/",
		PhoneNumberID: "12345",
		AccessToken:   "secret",
		Template:      "kpi_alert",
		Language:      "en_US",
		RatePerSecond: 100,
	})
	require.NoError(t, err)
	return ch
}

func TestWhatsAppChannel_Send(t *testing.T) {
	var (
		path    string
		auth    string
		payload map[string]any
	)
	ch := newWhatsApp(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	})

	require.NoError(t, ch.Send(context.Background(), "6591234567", "KPI alert", "SALES below target"))

	assert.Equal(t, "/12345/messages", path)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "whatsapp", payload["messaging_product"])
	assert.Equal(t, "6591234567", payload["to"])
	assert.Equal(t, "text", payload["type"])
	assert.Equal(t, map[string]any{"body": "KPI alert\n\nSALES below target"}, payload["text"])
	assert.NotContains(t, payload, "template")
}

func TestWhatsAppChannel_Onboard(t *testing.T) {
	var payload map[string]any
	ch := newWhatsApp(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, ch.Onboard(context.Background(), "6591234567"))

	assert.Equal(t, "template", payload["type"])
	assert.Equal(t, map[string]any{
		"name":     "kpi_alert",
		"language": map[string]any{"code": "en_US"},
	}, payload["template"])
}

func TestWhatsAppChannel_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
		rateLimit bool
	}{
		{"server error", http.StatusBadGateway, true, false},
		{"rate limited", http.StatusTooManyRequests, true, true},
		{"bad request", http.StatusBadRequest, false, false},
		{"unauthorized", http.StatusUnauthorized, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := newWhatsApp(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			})

			err := ch.Send(context.Background(), "65", "s", "b")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "nope")
			assert.Equal(t, tt.rateLimit, errors.Is(err, common.ErrRateLimit))

			var retryable *common.RetryableError
			isPermanent := errors.As(err, &retryable) && !retryable.Retryable
			assert.Equal(t, !tt.retryable, isPermanent)
		})
	}
}

func TestWhatsAppChannel_Recipient(t *testing.T) {
	ch := &WhatsAppChannel{}
	assert.Equal(t, "6591234567", ch.Recipient(model.Employee{PhoneNumber: " +6591234567 "}))
	assert.Empty(t, ch.Recipient(model.Employee{}))
}

func TestNewWhatsAppChannel_RequiresCredentials(t *testing.T) {
	_, err := NewWhatsAppChannel(config.WhatsAppConfig{PhoneNumberID: "1"})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestEmailChannel_Send(t *testing.T) {
	ch, err := NewEmailChannel(config.EmailConfig{
		Host:     "smtp.example.com",
		Username: "alerts@example.com",
		Password: "secret",
		From:     "alerts@example.com",
		FromName: "Forecast Alerts",
	})
	require.NoError(t, err)

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)
	ch.send = func(_ context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, auth)
		return nil
	}

	require.NoError(t, ch.Send(context.Background(), "dewi@example.com", "KPI alert: 1 target at risk", "SALES below target\n"))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "alerts@example.com", gotFrom)
	assert.Equal(t, []string{"dewi@example.com"}, gotTo)

	mr, err := mail.CreateReader(bytes.NewReader(gotMsg))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "KPI alert: 1 target at risk", subject)

	from, err := mr.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "Forecast Alerts", from[0].Name)
	assert.Equal(t, "alerts@example.com", from[0].Address)

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal(t, "SALES below target\n", strings.ReplaceAll(string(body), "\r\n", "\n"))
}

func TestEmailChannel_Recipient(t *testing.T) {
	ch := &EmailChannel{}
	assert.Equal(t, "dewi@example.com", ch.Recipient(model.Employee{Email: " dewi@example.com"}))
}

func TestNewEmailChannel_RequiresSender(t *testing.T) {
	_, err := NewEmailChannel(config.EmailConfig{Host: "smtp.example.com"})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}
