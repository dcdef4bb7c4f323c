package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/application"
	redisinfra "github.com/sanosuguru/go-event-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-booking/internal/pkg/metrics"
)

// SweepLeaseName は複数ノードで照合を一つだけ走らせるためのリース名
const SweepLeaseName = "conservation-sweep"

// DriftChecker は在庫の保存則を検査するインターフェース
type DriftChecker interface {
	CheckConservation(ctx context.Context) ([]application.Drift, error)
}

// HeldLease は取得済みのリース
type HeldLease interface {
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

// AcquireFunc はリースを取得する
// 他ノードが保持中なら redisinfra.ErrLeaseHeld を返す
type AcquireFunc func(ctx context.Context) (HeldLease, error)

// ConservationSweeper は定期的に保存則を検査し、ずれを報告するワーカー
// 在庫の修復は行わない。連続する二回の検査で残ったずれだけを報告する
type ConservationSweeper struct {
	checker    DriftChecker
	metrics    *metrics.Metrics
	acquire    AcquireFunc
	renewEvery time.Duration
	interval   time.Duration
	suspects   map[string]int
	stopCh     chan struct{}
	doneCh     chan struct{}
}

func NewConservationSweeper(checker DriftChecker, m *metrics.Metrics, interval time.Duration) *ConservationSweeper {
	if m == nil {
		m = metrics.NewNop()
	}
	return &ConservationSweeper{
		checker:  checker,
		metrics:  m,
		interval: interval,
		suspects: make(map[string]int),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// WithLease はノード間のリースを設定する。未設定なら毎回検査する
// 検査中は ttl の三分の一ごとにリースを延長する
func (s *ConservationSweeper) WithLease(acquire AcquireFunc, ttl time.Duration) *ConservationSweeper {
	s.acquire = acquire
	s.renewEvery = ttl / 3
	return s
}

type ttlLease struct {
	lease *redisinfra.Lease
	ttl   time.Duration
}

func (l ttlLease) Extend(ctx context.Context) error { return l.lease.Extend(ctx, l.ttl) }
func (l ttlLease) Release(ctx context.Context) error { return l.lease.Release(ctx) }

// LeaseFrom は LeaseManager から AcquireFunc を作る
func LeaseFrom(m *redisinfra.LeaseManager, ttl time.Duration) AcquireFunc {
	return func(ctx context.Context) (HeldLease, error) {
		lease, err := m.TryAcquire(ctx, SweepLeaseName, ttl)
		if err != nil {
			return nil, err
		}
		return ttlLease{lease: lease, ttl: ttl}, nil
	}
}

// Start はスイーパーを開始する（ブロックする）
func (s *ConservationSweeper) Start(ctx context.Context) {
	logger.Info("在庫照合スイーパー開始", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("在庫照合スイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("在庫照合スイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止し、終了を待つ
func (s *ConservationSweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// sweep は一回分の照合を行い、検査したかどうかを返す
func (s *ConservationSweeper) sweep(ctx context.Context) bool {
	log := logger.Named("sweeper")

	checkCtx := ctx
	if s.acquire != nil {
		lease, err := s.acquire(ctx)
		if errors.Is(err, redisinfra.ErrLeaseHeld) {
			log.Debug("他ノードが照合中のためスキップ")
			return false
		}
		if err != nil {
			log.Warn("リース取得に失敗したため照合をスキップ", zap.Error(err))
			return false
		}

		var cancel context.CancelFunc
		checkCtx, cancel = context.WithCancel(ctx)
		stopRenew := s.keepAlive(checkCtx, cancel, lease)
		defer func() {
			stopRenew()
			cancel()
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("リース解放に失敗", zap.Error(err))
			}
		}()
	}

	drifts, err := s.checker.CheckConservation(checkCtx)
	if err != nil {
		log.Error("在庫照合に失敗", zap.Error(err))
		return false
	}

	// 一度だけ見えたずれは次回まで保留する
	seen := make(map[string]int, len(drifts))
	confirmed := 0
	for _, d := range drifts {
		seen[d.EventID] = d.Delta()
		if _, ok := s.suspects[d.EventID]; !ok {
			log.Debug("在庫のずれを検出、次回の照合で確認します",
				zap.String("event_id", d.EventID),
				zap.Int("delta", d.Delta()),
			)
			continue
		}
		confirmed++
		s.metrics.ReconciliationIncidents.WithLabelValues("conservation_drift").Inc()
		log.Warn("在庫の保存則がずれています（reconciliation required）",
			zap.String("event_id", d.EventID),
			zap.Int("total", d.TotalSeats),
			zap.Int("available", d.AvailableSeats),
			zap.Int("confirmed", d.ConfirmedSeats),
			zap.Int("in_flight", d.InFlightSeats),
			zap.Int("delta", d.Delta()),
		)
	}
	s.suspects = seen
	s.metrics.ConservationDrift.Set(float64(confirmed))
	if len(drifts) == 0 {
		log.Debug("在庫のずれなし")
	}
	return true
}

// keepAlive は検査が終わるまでリースを延長し続ける
// 延長に失敗したら cancel で検査を打ち切る
func (s *ConservationSweeper) keepAlive(ctx context.Context, cancel context.CancelFunc, lease HeldLease) (stop func()) {
	if s.renewEvery <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.renewEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lease.Extend(ctx); err != nil {
					logger.Named("sweeper").Warn("リース延長に失敗したため照合を中断", zap.Error(err))
					cancel()
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
