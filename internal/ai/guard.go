package ai

import (
	"context"
	"time"

	"rag-backend/internal/logger"
	"rag-backend/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("rag-backend/ai")

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// newTierLimiter returns a limiter running at 90% of the tier's RPM.
func newTierLimiter(tier string) *rate.Limiter {
	limits := getRateLimits(tier)
	burst := limits.RPM / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), burst)
}

// guard wraps provider calls with an optional rate limiter, a circuit
// breaker and a tracing span.
type guard struct {
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func newGuard(name string, limiter *rate.Limiter, metrics *telemetry.Metrics) *guard {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	return &guard{breaker: breaker, limiter: limiter}
}

func (g *guard) execute(ctx context.Context, spanName string, attrs []attribute.KeyValue, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attrs...)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			span.SetAttributes(attribute.Bool("ai.rate_limited", true))
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limiter")
			return nil, err
		}
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			span.SetAttributes(attribute.Bool("ai.circuit_breaker_open", true))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return result, nil
}
