package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"padel-rating/internal/config"
	"padel-rating/internal/constants"
)

// Notifier receives human-readable toasts after rating updates. Delivery is
// best-effort; a failed toast never affects the rating flow.
type Notifier interface {
	Toast(text string)
}

// WebhookNotifier posts toasts to a configured webhook. With no URL
// configured every call is a no-op.
type WebhookNotifier struct {
	url    string
	client *fasthttp.Client
	logger zerolog.Logger
}

func NewWebhook(cfg *config.Config, logger zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url: cfg.WebhookURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     10,
			ReadTimeout:         constants.WebhookTimeout,
			WriteTimeout:        constants.WebhookTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

type toastPayload struct {
	Text string `json:"text"`
}

func (n *WebhookNotifier) Toast(text string) {
	if n.url == "" {
		return
	}

	// Fire and forget. The caller has already committed its batch.
	go func() {
		if err := n.post(text); err != nil {
			n.logger.Warn().Err(err).Str("text", text).Msg("toast delivery failed")
		}
	}()
}

func (n *WebhookNotifier) post(text string) error {
	body, err := json.Marshal(toastPayload{Text: text})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(n.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := n.client.DoTimeout(req, resp, constants.WebhookTimeout); err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook error: %d", resp.StatusCode())
	}
	return nil
}
