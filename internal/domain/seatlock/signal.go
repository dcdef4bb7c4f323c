// Package seatlock は座席の「選択中」を他の閲覧者へ知らせる助言的な信号を扱う
// 在庫や予約台帳には一切触れず、空席の真実は常に event.Inventory が持つ
package seatlock

import (
	"errors"
	"strings"
	"time"
)

// IntentType はクライアントから届く意図の種類
type IntentType string

const (
	IntentLock   IntentType = "lock-seat"
	IntentUnlock IntentType = "unlock-seat"
)

// SignalType は他のクライアントへ配信する信号の種類
type SignalType string

const (
	SignalLocked   SignalType = "seat-locked"
	SignalUnlocked SignalType = "seat-unlocked"
)

var (
	ErrUnknownIntent     = errors.New("不明なメッセージ種別です")
	ErrEventIDRequired   = errors.New("eventId は必須です")
	ErrSeatTokenRequired = errors.New("seatToken は必須です")
)

// Intent はクライアントが送る lock-seat / unlock-seat
type Intent struct {
	Type      IntentType `json:"type"`
	EventID   string     `json:"eventId"`
	SeatToken string     `json:"seatToken"`
}

// Validate は意図の形式を検証する
func (i Intent) Validate() error {
	if i.Type != IntentLock && i.Type != IntentUnlock {
		return ErrUnknownIntent
	}
	if strings.TrimSpace(i.EventID) == "" {
		return ErrEventIDRequired
	}
	if strings.TrimSpace(i.SeatToken) == "" {
		return ErrSeatTokenRequired
	}
	return nil
}

// Signal は中継される一時的なメッセージで、永続化されない
// ExpiresAt を過ぎたロックは受信側で破棄してよい
type Signal struct {
	Type      SignalType `json:"type"`
	EventID   string     `json:"eventId"`
	SeatToken string     `json:"seatToken"`
	ClientID  string     `json:"clientId"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// ToSignal は意図を配信用の信号に変換する
// ロックには now + ttl の期限を付ける
func (i Intent) ToSignal(clientID string, now time.Time, ttl time.Duration) Signal {
	s := Signal{
		Type:      SignalUnlocked,
		EventID:   i.EventID,
		SeatToken: i.SeatToken,
		ClientID:  clientID,
	}
	if i.Type == IntentLock {
		s.Type = SignalLocked
		expiresAt := now.Add(ttl)
		s.ExpiresAt = &expiresAt
	}
	return s
}

// Unlocked は切断時などにサーバーが代理で送る解除信号を作る
func Unlocked(eventID, seatToken, clientID string) Signal {
	return Signal{Type: SignalUnlocked, EventID: eventID, SeatToken: seatToken, ClientID: clientID}
}
