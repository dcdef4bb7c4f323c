package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
)

// Drift は保存則（空席数 + 確定済み座席数 = 総座席数）から外れたイベント
type Drift = booking.SeatBalance

// ReconciliationService は在庫と予約台帳の整合性を検査する（修復はしない）
type ReconciliationService struct {
	balances booking.BalanceReader
}

func NewReconciliationService(balances booking.BalanceReader) *ReconciliationService {
	return &ReconciliationService{balances: balances}
}

// CheckConservation は全イベントの保存則を検査し、外れているものをイベントID順に返す
// 在庫と台帳は同じスナップショットから読むので、並行する予約を誤検知しない
func (s *ReconciliationService) CheckConservation(ctx context.Context) ([]Drift, error) {
	balances, err := s.balances.SeatBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("座席残高の取得に失敗: %w", err)
	}

	var drifts []Drift
	for _, b := range balances {
		if b.Delta() != 0 {
			drifts = append(drifts, b)
		}
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].EventID < drifts[j].EventID })
	return drifts, nil
}
