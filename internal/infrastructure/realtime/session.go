package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-event-booking/internal/domain/seatlock"
)

// Session は一つの接続がルームに参加している間の状態
// 接続が保持中のロックを覚えておき、切断時に解除を配信する
type Session struct {
	hub     *Hub
	eventID string
	id      string
	send    chan seatlock.Signal
	done    chan struct{}

	mu     sync.Mutex
	locked map[string]struct{}
	closed bool
}

var _ seatlock.Subscriber = (*Session)(nil)

// Open はイベントのルームに新しい接続を参加させる
func (h *Hub) Open(eventID string) *Session {
	s := &Session{
		hub:     h,
		eventID: eventID,
		id:      uuid.NewString(),
		send:    make(chan seatlock.Signal, h.cfg.SendBuffer),
		done:    make(chan struct{}),
		locked:  make(map[string]struct{}),
	}
	h.Join(eventID, s)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) EventID() string { return s.eventID }

// Deliver は送信バッファに空きがなければ破棄する
func (s *Session) Deliver(sig seatlock.Signal) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- sig:
		return true
	default:
		return false
	}
}

// Messages は他のクライアントから届いた信号
func (s *Session) Messages() <-chan seatlock.Signal {
	return s.send
}

// Done は Close 後に閉じられる
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Handle はクライアントの意図をルームへ配信する
func (s *Session) Handle(ctx context.Context, intent seatlock.Intent) error {
	if err := intent.Validate(); err != nil {
		return err
	}
	if intent.EventID != s.eventID {
		return ErrEventMismatch
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if intent.Type == seatlock.IntentLock {
		s.locked[intent.SeatToken] = struct{}{}
	} else {
		delete(s.locked, intent.SeatToken)
	}
	s.mu.Unlock()

	s.hub.Publish(ctx, intent.ToSignal(s.id, s.hub.now(), s.hub.cfg.LockTTL))
	return nil
}

// Close はルームから退出し、保持していたロックの解除を配信する
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tokens := make([]string, 0, len(s.locked))
	for token := range s.locked {
		tokens = append(tokens, token)
	}
	s.locked = nil
	s.mu.Unlock()

	s.hub.Leave(s.eventID, s)
	close(s.done)

	for _, token := range tokens {
		s.hub.Publish(ctx, seatlock.Unlocked(s.eventID, token, s.id))
	}
}
