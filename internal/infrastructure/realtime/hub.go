// Package realtime はイベントごとのルームで座席ソフトロック信号を中継する
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/domain/seatlock"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-booking/internal/pkg/metrics"
)

// ErrEventMismatch は接続したルームと異なるイベントへの信号を表す
var ErrEventMismatch = errors.New("接続中のイベントと eventId が一致しません")

// HubConfig はハブの設定
type HubConfig struct {
	LockTTL    time.Duration
	SendBuffer int
}

// Hub はプロセス内のルーム登録簿
// 在庫の状態は持たず、ルームの参加者だけを管理する
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]seatlock.Subscriber
	relay   seatlock.Relay
	cfg     HubConfig
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

var _ seatlock.Broker = (*Hub)(nil)

// NewHub は新しいHubを作成する。relay が nil の場合は単一ノードで動作する
func NewHub(cfg HubConfig, relay seatlock.Relay, m *metrics.Metrics) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Hub{
		rooms:   make(map[string]map[string]seatlock.Subscriber),
		relay:   relay,
		cfg:     cfg,
		metrics: m,
		log:     logger.Named("seatlock"),
		now:     time.Now,
	}
}

// Run は他ノードからの信号を受信し続ける（ctx 終了まで）
func (h *Hub) Run(ctx context.Context) error {
	if h.relay == nil {
		<-ctx.Done()
		return nil
	}
	return h.relay.Listen(ctx, h.fanout)
}

func (h *Hub) Join(eventID string, sub seatlock.Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[eventID]
	if !ok {
		room = make(map[string]seatlock.Subscriber)
		h.rooms[eventID] = room
	}
	room[sub.ID()] = sub
}

func (h *Hub) Leave(eventID string, sub seatlock.Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[eventID]
	if !ok {
		return
	}
	delete(room, sub.ID())
	if len(room) == 0 {
		delete(h.rooms, eventID)
	}
}

// Publish はルーム内の送信元以外へ配信し、他ノードへも中継する
// 中継の失敗はログに残すだけで呼び出し元には返さない
func (h *Hub) Publish(ctx context.Context, s seatlock.Signal) {
	h.fanout(s)

	if h.relay == nil {
		return
	}
	if err := h.relay.Publish(ctx, s); err != nil {
		h.log.Warn("座席ロック信号の中継に失敗",
			zap.String("event_id", s.EventID),
			zap.String("type", string(s.Type)),
			zap.Error(err),
		)
	}
}

// RoomSize はルームの参加者数を返す
func (h *Hub) RoomSize(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

func (h *Hub) fanout(s seatlock.Signal) {
	h.mu.RLock()
	targets := make([]seatlock.Subscriber, 0, len(h.rooms[s.EventID]))
	for id, sub := range h.rooms[s.EventID] {
		if id == s.ClientID {
			continue
		}
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	h.metrics.SeatLockSignals.WithLabelValues(string(s.Type)).Inc()
	for _, sub := range targets {
		if !sub.Deliver(s) {
			h.metrics.SeatLockDropped.Inc()
		}
	}
}
