// Package config reads the service settings from the environment.
//
// Unset variables take their defaults. A variable that is set but cannot be
// parsed is an error, as is any value outside its allowed range; Load
// reports all of them at once.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// RouteRate is a token bucket for one class of routes.
type RouteRate struct {
	RPS   float64
	Burst int
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "solar-support-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // DEPLOYMENT_ENV (e.g. "production", "staging")
}

// EmailConfig configures the email notification channel.
// With Enabled set and no SMTP host, deliveries are only logged.
type EmailConfig struct {
	Enabled  bool   // EMAIL_SERVICE_ENABLED
	SMTPHost string // SMTP_HOST
	SMTPPort int    // SMTP_PORT
	SMTPUser string // SMTP_USER
	SMTPPass string // SMTP_PASS
	From     string // EMAIL_FROM
}

// WhatsAppConfig configures the WhatsApp notification channel (Twilio).
type WhatsAppConfig struct {
	Enabled    bool   // WHATSAPP_SERVICE_ENABLED
	AccountSID string // TWILIO_ACCOUNT_SID
	AuthToken  string // TWILIO_AUTH_TOKEN
	FromNumber string // TWILIO_WHATSAPP_NUMBER
	APIBaseURL string // TWILIO_API_BASE_URL
}

// NotifyConfig groups the notification fan-out settings.
type NotifyConfig struct {
	Email    EmailConfig
	WhatsApp WhatsAppConfig
	Timeout  time.Duration // per-channel deadline
}

// ChatbotConfig configures POST /chat. An empty APIKey selects the
// rule-based FAQ bot.
type ChatbotConfig struct {
	APIKey      string        // OPENAI_API_KEY
	Model       string        // CHAT_MODEL
	ProviderURL string        // CHAT_PROVIDER_URL
	Timeout     time.Duration // CHAT_PROVIDER_TIMEOUT
	MinScore    int           // CHATBOT_MIN_SCORE, answers need a strictly higher score
}

// LiveChatConfig configures the websocket transport.
type LiveChatConfig struct {
	SendBuffer     int      // WS_SEND_BUFFER
	MaxMessageSize int64    // WS_MAX_MESSAGE_BYTES
	AllowedOrigins []string // WS_ALLOWED_ORIGINS, empty means same as CORS
}

// RedisConfig enables the shared agent presence set when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath         string // SQLite path
	FAQPath        string // optional markdown file with extra chatbot entries
	UploadDir      string // local directory for uploaded files
	MaxUploadBytes int64  // per-file upload limit

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// ChatRate bounds POST /chat, which may call the paid provider.
	ChatRate RouteRate
	// FormRate bounds the public forms (tickets, callbacks, contact, sign-up).
	FormRate RouteRate

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Domain
	Notify   NotifyConfig
	Chatbot  ChatbotConfig
	LiveChat LiveChatConfig
	Redis    RedisConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad is Load for main: it panics on the first bad configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load builds a Config from the process environment.
func Load() (Config, error) {
	var e env
	cfg := Config{
		Port:              e.str("PORT", "5000"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.boolean("LOG_PRETTY", false),
		SwaggerEnabled: e.boolean("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api")),

		DBPath:         e.str("DB_PATH", "support.db"),
		FAQPath:        e.str("FAQ_PATH", ""),
		UploadDir:      e.str("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(e.integer("MAX_UPLOAD_BYTES", 10<<20)),

		RateRPS:   e.float("RATE_RPS", 10),
		RateBurst: e.integer("RATE_BURST", 20),
		ChatRate:  RouteRate{RPS: e.float("RATE_CHAT_RPS", 1), Burst: e.integer("RATE_CHAT_BURST", 5)},
		FormRate:  RouteRate{RPS: e.float("RATE_FORM_RPS", 0.2), Burst: e.integer("RATE_FORM_BURST", 5)},

		CORS: CORSConfig{AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS")},
		Security: SecurityConfig{
			EnableHSTS: e.boolean("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},
		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		Notify: NotifyConfig{
			Email: EmailConfig{
				Enabled:  e.boolean("EMAIL_SERVICE_ENABLED", false),
				SMTPHost: e.str("SMTP_HOST", ""),
				SMTPPort: e.integer("SMTP_PORT", 587),
				SMTPUser: e.str("SMTP_USER", ""),
				SMTPPass: e.str("SMTP_PASS", ""),
				From:     e.str("EMAIL_FROM", "support@solartech.example"),
			},
			WhatsApp: WhatsAppConfig{
				Enabled:    e.boolean("WHATSAPP_SERVICE_ENABLED", false),
				AccountSID: e.str("TWILIO_ACCOUNT_SID", ""),
				AuthToken:  e.str("TWILIO_AUTH_TOKEN", ""),
				FromNumber: e.str("TWILIO_WHATSAPP_NUMBER", ""),
				APIBaseURL: strings.TrimRight(e.str("TWILIO_API_BASE_URL", "https://api.twilio.com"), "/"),
			},
			Timeout: e.dur("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Chatbot: ChatbotConfig{
			APIKey:      e.str("OPENAI_API_KEY", ""),
			Model:       e.str("CHAT_MODEL", "gpt-3.5-turbo"),
			ProviderURL: e.str("CHAT_PROVIDER_URL", "https://api.openai.com/v1/chat/completions"),
			Timeout:     e.dur("CHAT_PROVIDER_TIMEOUT", 20*time.Second),
			MinScore:    e.integer("CHATBOT_MIN_SCORE", 10),
		},
		LiveChat: LiveChatConfig{
			SendBuffer:     e.integer("WS_SEND_BUFFER", 256),
			MaxMessageSize: int64(e.integer("WS_MAX_MESSAGE_BYTES", 64<<10)),
			AllowedOrigins: e.list("WS_ALLOWED_ORIGINS"),
		},
		Redis: RedisConfig{
			Addr:     e.str("REDIS_ADDR", ""),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.integer("REDIS_DB", 0),
		},
		OTEL: OTELConfig{
			Enabled:     e.boolean("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "solar-support-backend"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
			Environment: e.str("DEPLOYMENT_ENV", "development"),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	if !oneOf(cfg.GinMode, "debug", "release", "test") {
		cfg.GinMode = "release"
	}
	if len(cfg.LiveChat.AllowedOrigins) == 0 {
		cfg.LiveChat.AllowedOrigins = cfg.CORS.AllowedOrigins
	}

	return cfg, errors.Join(append(e.errs, cfg.problems()...)...)
}

// problems lists every out-of-range setting.
func (c Config) problems() []error {
	var out []error
	require := func(ok bool, format string, args ...any) {
		if !ok {
			out = append(out, fmt.Errorf(format, args...))
		}
	}

	require(oneOf(c.LogLevel, "debug", "info", "warn", "error", "fatal", "panic"),
		"LOG_LEVEL %q is not one of debug, info, warn, error, fatal, panic", c.LogLevel)
	require(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	require(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"server timeouts must be positive")
	require(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be positive")

	require(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	require(strings.TrimSpace(c.UploadDir) != "", "UPLOAD_DIR must not be empty")
	require(c.MaxUploadBytes > 0, "MAX_UPLOAD_BYTES must be positive")

	require(c.RateRPS >= 0, "RATE_RPS must not be negative")
	require(c.RateBurst >= 1, "RATE_BURST must be at least 1")
	require(c.ChatRate.RPS >= 0, "RATE_CHAT_RPS must not be negative")
	require(c.ChatRate.Burst >= 1, "RATE_CHAT_BURST must be at least 1")
	require(c.FormRate.RPS >= 0, "RATE_FORM_RPS must not be negative")
	require(c.FormRate.Burst >= 1, "RATE_FORM_BURST must be at least 1")

	require(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must not be negative")
	require(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be positive")

	require(c.Notify.Timeout > 0, "NOTIFY_TIMEOUT must be positive")
	require(c.Notify.Email.SMTPPort > 0 && c.Notify.Email.SMTPPort <= 65535,
		"SMTP_PORT %d is not a valid port", c.Notify.Email.SMTPPort)
	require(c.Chatbot.Timeout > 0, "CHAT_PROVIDER_TIMEOUT must be positive")

	require(c.LiveChat.SendBuffer >= 1, "WS_SEND_BUFFER must be at least 1")
	require(c.LiveChat.MaxMessageSize > 0, "WS_MAX_MESSAGE_BYTES must be positive")
	require(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be within [0,1]")
	return out
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// normalizeBasePath returns p with one leading slash and no trailing one.
// Blank means the root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
