package llm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
)

var breakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "chat_provider_breaker_state",
		Help: "Circuit breaker state of the chat provider (0 closed, 1 half-open, 2 open).",
	},
	[]string{"name"},
)

func init() {
	prometheus.MustRegister(breakerState)
}

// Breaker guards a Completer with a circuit breaker. While open, calls fail
// immediately with gobreaker.ErrOpenState.
type Breaker struct {
	next Completer
	cb   *gobreaker.CircuitBreaker[string]
}

// BreakerSettings tunes NewBreaker. Zero values take the defaults: trip
// after 5 consecutive failures, retry after 30s.
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// NewBreaker wraps next.
func NewBreaker(next Completer, s BreakerSettings) *Breaker {
	if s.Name == "" {
		s.Name = "chat-provider"
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	breakerState.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.OpenTimeout,
		// A caller that gave up says nothing about the provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			breakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return &Breaker{next: next, cb: cb}
}

// Complete implements Completer.
func (b *Breaker) Complete(ctx context.Context, msgs []Message) (string, error) {
	return b.cb.Execute(func() (string, error) {
		return b.next.Complete(ctx, msgs)
	})
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }
