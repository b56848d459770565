package notify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPushoverURL     = "https://api.pushover.net/1/messages.json"
	DefaultPushoverTimeout = 10 * time.Second
)

type PushoverSettings struct {
	Token   string        `yaml:"token,omitempty"`
	User    string        `yaml:"user,omitempty"`
	URL     string        `yaml:"url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

func (s PushoverSettings) Configured() bool {
	return s.Token != "" && s.User != ""
}

// PushoverNotifier posts messages to the Pushover messages endpoint.
// With missing credentials every Notify is a logged no-op.
type PushoverNotifier struct {
	settings   PushoverSettings
	httpClient *http.Client
}

type PushoverOption func(*PushoverNotifier)

func WithHTTPClient(c *http.Client) PushoverOption {
	return func(p *PushoverNotifier) {
		p.httpClient = c
	}
}

func NewPushoverNotifier(s PushoverSettings, options ...PushoverOption) *PushoverNotifier {
	if s.URL == "" {
		s.URL = DefaultPushoverURL
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultPushoverTimeout
	}
	ret := &PushoverNotifier{
		settings:   s,
		httpClient: &http.Client{},
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (p *PushoverNotifier) Notify(ctx context.Context, text string) {
	if !p.settings.Configured() {
		log.Warn().Str("notifier", "pushover").Msg("missing pushover token or user, notification skipped")
		return
	}

	if err := p.send(ctx, text); err != nil {
		log.Error().Err(err).Str("notifier", "pushover").Msg("failed to send notification")
		return
	}
	log.Info().Str("notifier", "pushover").Msg("notification sent")
}

func (p *PushoverNotifier) send(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, p.settings.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("token", p.settings.Token)
	form.Set("user", p.settings.User)
	form.Set("message", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "create pushover request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "pushover request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Errorf("pushover returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

var _ Notifier = (*PushoverNotifier)(nil)
