package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/domain/seatlock"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
)

const seatLockChannelPrefix = "seatlock:"

// SeatLockRelay は Redis Pub/Sub で座席ソフトロック信号を他ノードへ中継する
// 配信保証はなく、購読していないノードへの信号は失われる
type SeatLockRelay struct {
	client *redis.Client
	node   string
	log    *zap.Logger
}

var _ seatlock.Relay = (*SeatLockRelay)(nil)

type relayEnvelope struct {
	Node   string          `json:"node"`
	Signal seatlock.Signal `json:"signal"`
}

// NewSeatLockRelay は新しいSeatLockRelayを作成する
func NewSeatLockRelay(client *redis.Client) *SeatLockRelay {
	return &SeatLockRelay{
		client: client,
		node:   uuid.NewString(),
		log:    logger.Named("seatlock_relay"),
	}
}

// Publish はイベントごとのチャンネルへ信号を送る
func (r *SeatLockRelay) Publish(ctx context.Context, s seatlock.Signal) error {
	payload, err := json.Marshal(relayEnvelope{Node: r.node, Signal: s})
	if err != nil {
		return fmt.Errorf("信号のエンコードに失敗: %w", err)
	}
	if err := r.client.Publish(ctx, seatLockChannel(s.EventID), payload).Err(); err != nil {
		return fmt.Errorf("信号の送信に失敗: %w", err)
	}
	return nil
}

// Listen はすべてのイベントのチャンネルを購読し、他ノード発の信号を deliver に渡す
func (r *SeatLockRelay) Listen(ctx context.Context, deliver func(seatlock.Signal)) error {
	pubsub := r.client.PSubscribe(ctx, seatLockChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s, ok := r.decode(msg.Payload)
			if !ok {
				continue
			}
			deliver(s)
		}
	}
}

// decode は自ノード発の信号と壊れたメッセージを除外する
func (r *SeatLockRelay) decode(payload string) (seatlock.Signal, bool) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("不正な座席ロック信号を破棄", zap.Error(err))
		return seatlock.Signal{}, false
	}
	if env.Node == r.node {
		return seatlock.Signal{}, false
	}
	return env.Signal, true
}

func seatLockChannel(eventID string) string {
	return seatLockChannelPrefix + eventID
}
