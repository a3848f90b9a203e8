// Package monitoring exposes Prometheus metrics for the booking and
// payment concerns ticketbot cares about, the way the teacher's
// monitoring/metrics.go does for queue and seat-lock concerns.
package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	bookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total pending bookings created, by payment method",
		},
		[]string{"payment_method"},
	)

	bookingsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_completed_total",
			Help: "Total bookings moved to PAID, by payment method and whether this call won the race",
		},
		[]string{"payment_method", "won_race"},
	)

	paymentAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_attempts_total",
			Help: "Total payment charge attempts, by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payment_circuit_breaker_state",
			Help: "Current circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	lockContention = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_lock_acquire_total",
			Help: "Total booking lock acquire attempts, by outcome",
		},
		[]string{"outcome"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversation_sessions_active",
			Help: "Approximate number of conversation sessions stored in Redis",
		},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}
	go monitor.collectMetrics()
	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.collectSessionMetrics(context.Background())
	}
}

func (m *Monitor) collectSessionMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "session:*").Result()
	if err != nil {
		return
	}
	activeSessions.Set(float64(len(keys)))
}

func TrackBookingCreated(method string) {
	bookingsCreated.WithLabelValues(method).Inc()
}

func TrackBookingCompleted(method string, wonRace bool) {
	won := "false"
	if wonRace {
		won = "true"
	}
	bookingsCompleted.WithLabelValues(method, won).Inc()
}

func TrackPaymentAttempt(provider, status string) {
	paymentAttempts.WithLabelValues(provider, status).Inc()
}

func TrackCircuitBreakerState(provider string, state int) {
	circuitBreakerState.WithLabelValues(provider).Set(float64(state))
}

func TrackLockAcquire(outcome string) {
	lockContention.WithLabelValues(outcome).Inc()
}
