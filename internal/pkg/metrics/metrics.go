package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約作成の試行数（result: success, insufficient, not_found, duplicate, error）
	BookingsTotal *prometheus.CounterVec

	// キャンセルの試行数（result: success, already_cancelled, forbidden, error）
	CancellationsTotal *prometheus.CounterVec

	// 照合が必要なインシデント数（kind: compensation_failed, conservation_drift）
	ReconciliationIncidents *prometheus.CounterVec

	// 座席ソフトロック信号の中継数（type: seat-locked, seat-unlocked）
	SeatLockSignals *prometheus.CounterVec

	// 受信側バッファ溢れで破棄した信号数
	SeatLockDropped prometheus.Counter

	// 直近の照合で保存則がずれていたイベント数
	ConservationDrift prometheus.Gauge
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking attempts by result",
			},
			[]string{"result"},
		),
		CancellationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_cancellations_total",
				Help: "Total number of booking cancellation attempts by result",
			},
			[]string{"result"},
		),
		ReconciliationIncidents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciliation_incidents_total",
				Help: "Incidents that require operator reconciliation of seat inventory",
			},
			[]string{"kind"},
		),
		SeatLockSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seat_lock_signals_total",
				Help: "Advisory seat lock signals relayed to subscribers",
			},
			[]string{"type"},
		),
		SeatLockDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "seat_lock_dropped_total",
				Help: "Advisory seat lock signals dropped because a subscriber was too slow",
			},
		),
		ConservationDrift: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "conservation_drift_events",
				Help: "Events whose available seats do not match total minus confirmed seats in the last sweep",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.CancellationsTotal,
		m.ReconciliationIncidents,
		m.SeatLockSignals,
		m.SeatLockDropped,
		m.ConservationDrift,
	)

	return m
}

// NewNop はどこにも登録しないMetricsを返す（テスト・オプション依存用）
func NewNop() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}
