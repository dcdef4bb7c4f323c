package booking

import "context"

// SeatBalance は一つのイベントについて在庫と予約台帳を同じ時点で読んだ値
type SeatBalance struct {
	EventID        string
	TotalSeats     int
	AvailableSeats int
	ConfirmedSeats int
	// InFlightSeats は未完了の作業単位が在庫と台帳の間で動かしている座席数
	// スナップショット分離のあるストアでは常に0
	InFlightSeats int
}

// Delta は保存則からのずれ。正なら座席が取り残され、負なら過剰販売
func (b SeatBalance) Delta() int {
	return b.TotalSeats - b.AvailableSeats - b.ConfirmedSeats - b.InFlightSeats
}

// BalanceReader は全イベントの SeatBalance を一つのスナップショットから読む
type BalanceReader interface {
	SeatBalances(ctx context.Context) ([]SeatBalance, error)
}
