package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"gowa-blast/internal/helper"
	"gowa-blast/internal/model"
)

// CloudConfig carries the static credentials for the Cloud API variant.
type CloudConfig struct {
	BaseURL     string
	AccountID   string
	AccessToken string
	CountryCode string
	Timeout     time.Duration
}

// CloudAdapter talks to the hosted WhatsApp Cloud API. There is no
// pairing and no persistent link: Connect is a synchronous credential
// probe and each send is an independent HTTP call.
type CloudAdapter struct {
	cfg    CloudConfig
	client *http.Client
	log    zerolog.Logger
}

func NewCloud(cfg CloudConfig, log zerolog.Logger) *CloudAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CloudAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

var (
	_ Adapter        = (*CloudAdapter)(nil)
	_ TemplateSender = (*CloudAdapter)(nil)
)

// Connect verifies the account ID and access token with a read-only
// probe against the business account resource.
func (a *CloudAdapter) Connect(ctx context.Context) error {
	url := fmt.Sprintf("%s/%s?fields=verified_name", a.cfg.BaseURL, a.cfg.AccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloud api unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("credential check failed: %s", remoteError(resp))
	}
	a.log.Info().Str("account", a.cfg.AccountID).Msg("cloud api credentials verified")
	return nil
}

func (a *CloudAdapter) SendText(ctx context.Context, recipient, body string) error {
	to, err := helper.NormalizeMSISDN(recipient, a.cfg.CountryCode)
	if err != nil {
		return err
	}
	return a.post(ctx, cloudMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &cloudText{Body: body},
	})
}

func (a *CloudAdapter) SendTemplate(ctx context.Context, recipient string, tmpl model.TemplateRef) error {
	to, err := helper.NormalizeMSISDN(recipient, a.cfg.CountryCode)
	if err != nil {
		return err
	}
	msg := cloudMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: &cloudTemplate{
			Name:     tmpl.Name,
			Language: cloudLanguage{Code: tmpl.Language},
		},
	}
	if len(tmpl.Params) > 0 {
		params := make([]cloudParam, 0, len(tmpl.Params))
		for _, p := range tmpl.Params {
			params = append(params, cloudParam{Type: "text", Text: p})
		}
		msg.Template.Components = []cloudComponent{{Type: "body", Parameters: params}}
	}
	return a.post(ctx, msg)
}

func (a *CloudAdapter) post(ctx context.Context, msg cloudMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	url := fmt.Sprintf("%s/%s/messages", a.cfg.BaseURL, a.cfg.AccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloud api unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s", remoteError(resp))
	}
	return nil
}

// Disconnect is a no-op at the transport level: the Cloud variant holds
// no link. Credential cleanup happens in the session manager.
func (a *CloudAdapter) Disconnect(ctx context.Context) {}

// remoteError extracts the API error message from a failed response,
// falling back to the bare status code.
func remoteError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil {
		var parsed struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
			return parsed.Error.Message
		}
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

// Wire shapes for the Cloud API messages endpoint.
type cloudMessage struct {
	MessagingProduct string         `json:"messaging_product"`
	To               string         `json:"to"`
	Type             string         `json:"type"`
	Text             *cloudText     `json:"text,omitempty"`
	Template         *cloudTemplate `json:"template,omitempty"`
}

type cloudText struct {
	Body string `json:"body"`
}

type cloudTemplate struct {
	Name       string           `json:"name"`
	Language   cloudLanguage    `json:"language"`
	Components []cloudComponent `json:"components,omitempty"`
}

type cloudLanguage struct {
	Code string `json:"code"`
}

type cloudComponent struct {
	Type       string       `json:"type"`
	Parameters []cloudParam `json:"parameters"`
}

type cloudParam struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
