// Package memory はプロセス内で完結する在庫ストアと予約台帳
// ストア全体のミューテックスが条件付き更新の不可分性を保証する
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// ErrUndoFailed は取り消し処理を適用できなかったことを表す
var ErrUndoFailed = errors.New("取り消し処理を適用できませんでした")

// Store はイベントと予約を保持する
type Store struct {
	mu       sync.Mutex
	events   map[string]*event.Event
	bookings map[string]*booking.Booking
	order    []string // 予約の作成順
	byKey    map[string]string
	// inFlight は未完了の作業単位が在庫と台帳の間で動かしている座席数
	inFlight map[string]int
}

// NewStore は空のストアを作成する
func NewStore() *Store {
	return &Store{
		events:   make(map[string]*event.Event),
		bookings: make(map[string]*booking.Booking),
		byKey:    make(map[string]string),
		inFlight: make(map[string]int),
	}
}

// Events はイベントリポジトリ兼在庫を返す
func (s *Store) Events() *EventRepository {
	return &EventRepository{store: s}
}

// Bookings は予約台帳を返す
func (s *Store) Bookings() *BookingRepository {
	return &BookingRepository{store: s}
}

// TxManager は作業単位のマネージャーを返す
func (s *Store) TxManager() *TxManager {
	return &TxManager{store: s}
}

// TxManager はインメモリの作業単位を開始する
type TxManager struct {
	store *Store
}

var _ transaction.Manager = (*TxManager)(nil)

func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: m.store}, nil
}

// Tx は変更を即時適用し、取り消し手順を記録しておく作業単位
// Rollback は記録した手順を逆順に適用する（予約の保存失敗時は座席の戻しになる）
// 在庫と台帳の片側だけに反映した座席は終了まで移動中として数える
type Tx struct {
	store *Store
	undo  []func() error
	moved map[string]int
	done  bool
}

var _ transaction.Tx = (*Tx)(nil)

// onRollback はストアのロック保持中に呼ぶこと
func (t *Tx) onRollback(fn func() error) {
	t.undo = append(t.undo, fn)
}

// shift は座席の移動を記録する。ストアのロック保持中に呼ぶこと
// 正は在庫から引いて台帳にまだ載っていない座席、負はその逆
func (t *Tx) shift(eventID string, seats int) {
	if seats == 0 {
		return
	}
	if t.moved == nil {
		t.moved = make(map[string]int)
	}
	t.moved[eventID] += seats
	t.store.inFlight[eventID] += seats
}

// settle は記録した移動をストアから消す。ストアのロック保持中に呼ぶこと
func (t *Tx) settle() {
	for id, seats := range t.moved {
		t.store.inFlight[id] -= seats
		if t.store.inFlight[id] == 0 {
			delete(t.store.inFlight, id)
		}
	}
	t.moved = nil
}

func (t *Tx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.done {
		return transaction.ErrNoTransaction
	}
	t.done = true
	t.undo = nil
	t.settle()
	return nil
}

func (t *Tx) Rollback() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true

	var errs []error
	for i := len(t.undo) - 1; i >= 0; i-- {
		if err := t.undo[i](); err != nil {
			errs = append(errs, err)
		}
	}
	t.undo = nil
	t.settle()
	return errors.Join(errs...)
}

// unwrapTx は呼び出し時点で終了済みの作業単位を拒否する
func unwrapTx(tx transaction.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil || t.done {
		return nil, transaction.ErrNoTransaction
	}
	return t, nil
}

func cloneEvent(e *event.Event) *event.Event {
	c := *e
	return &c
}

func cloneBooking(b *booking.Booking) *booking.Booking {
	c := *b
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		c.CancelledAt = &at
	}
	return &c
}
