package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	twilio "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"gopkg.in/gomail.v2"

	"github.com/tbourn/solar-support-backend/internal/config"
)

// skipChannel is a channel turned off by configuration.
type skipChannel struct{ name string }

// Skip returns a channel that always reports ErrChannelDisabled.
func Skip(name string) Channel { return skipChannel{name: name} }

func (s skipChannel) Name() string                           { return s.name }
func (s skipChannel) Deliver(context.Context, Payload) error { return ErrChannelDisabled }

// logChannel is enabled but has no provider: it records the intent only.
type logChannel struct {
	name string
	log  zerolog.Logger
}

// LogOnly returns a channel that logs each delivery instead of sending it.
func LogOnly(name string, l zerolog.Logger) Channel { return logChannel{name: name, log: l} }

func (c logChannel) Name() string { return c.name }

func (c logChannel) Deliver(_ context.Context, p Payload) error {
	to := p.Email
	if c.name == "whatsapp" {
		to = p.Phone
	}
	c.log.Info().Str("channel", c.name).Str("to", to).Str("title", p.Title).Msg("no provider configured, notification logged only")
	return nil
}

// mailSender is the part of *gomail.Dialer the email channel needs.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailChannel delivers notifications over SMTP.
type EmailChannel struct {
	sender mailSender
	from   string
}

// NewEmailChannel picks the email implementation for cfg: disabled, log
// only (no SMTP host) or SMTP.
func NewEmailChannel(cfg config.EmailConfig) Channel {
	switch {
	case !cfg.Enabled:
		return Skip("email")
	case cfg.SMTPHost == "":
		return LogOnly("email", log.Logger)
	}
	return &EmailChannel{
		sender: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   cfg.From,
	}
}

// Name implements Channel.
func (e *EmailChannel) Name() string { return "email" }

// Deliver implements Channel. gomail has no context support, so the send
// runs in its own goroutine and Deliver returns early on cancellation.
func (e *EmailChannel) Deliver(ctx context.Context, p Payload) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetAddressHeader("To", p.Email, p.Name)
	m.SetHeader("Subject", p.Title)
	m.SetBody("text/html", renderHTML(p))

	errc := make(chan error, 1)
	go func() { errc <- e.sender.DialAndSend(m) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func renderHTML(p Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>\n<p>%s</p>\n", html.EscapeString(p.Title), html.EscapeString(p.Message))
	if p.RelatedID != "" {
		fmt.Fprintf(&b, "<p>Reference: %s</p>\n", html.EscapeString(Reference(p.RelatedID)))
	}
	return b.String()
}

// messageCreator is the part of the Twilio v2010 API the WhatsApp channel
// needs.
type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// WhatsAppChannel delivers notifications through the Twilio Messages API.
type WhatsAppChannel struct {
	api  messageCreator
	from string
}

// NewWhatsAppChannel picks the WhatsApp implementation for cfg: disabled,
// log only (incomplete Twilio credentials) or Twilio. hc carries the
// outbound timeout; a nil hc uses http.DefaultClient.
func NewWhatsAppChannel(cfg config.WhatsAppConfig, hc *http.Client) Channel {
	switch {
	case !cfg.Enabled:
		return Skip("whatsapp")
	case cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "":
		return LogOnly("whatsapp", log.Logger)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	if cfg.APIBaseURL != "" && cfg.APIBaseURL != twilioBaseURL {
		if target, err := url.Parse(cfg.APIBaseURL); err == nil && target.Host != "" {
			rebased := *hc
			rebased.Transport = rebaseTransport{target: target, next: transportOf(hc)}
			hc = &rebased
		} else {
			log.Warn().Str("base_url", cfg.APIBaseURL).Msg("ignoring malformed twilio base url")
		}
	}

	tc := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  hc,
	}
	tc.SetAccountSid(cfg.AccountSID)
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Client: tc})
	return &WhatsAppChannel{api: rest.Api, from: cfg.FromNumber}
}

// Name implements Channel.
func (w *WhatsAppChannel) Name() string { return "whatsapp" }

// Deliver implements Channel. The Twilio client takes no context, so the
// call runs in its own goroutine like the SMTP send.
func (w *WhatsAppChannel) Deliver(ctx context.Context, p Payload) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetFrom("whatsapp:" + w.from)
	params.SetTo("whatsapp:" + p.Phone)
	params.SetBody(fmt.Sprintf("*%s*\n\n%s", p.Title, renderText(p)))

	errc := make(chan error, 1)
	go func() {
		_, err := w.api.CreateMessage(params)
		errc <- err
	}()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("twilio: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const twilioBaseURL = "https://api.twilio.com"

// rebaseTransport sends Twilio API calls to another host, such as a
// regional proxy or a local fake.
type rebaseTransport struct {
	target *url.URL
	next   http.RoundTripper
}

func (t rebaseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.Host = t.target.Host
	if prefix := strings.TrimRight(t.target.Path, "/"); prefix != "" {
		out.URL.Path = prefix + out.URL.Path
	}
	return t.next.RoundTrip(out)
}

func transportOf(hc *http.Client) http.RoundTripper {
	if hc.Transport != nil {
		return hc.Transport
	}
	return http.DefaultTransport
}
