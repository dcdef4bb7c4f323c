package booking

import "sort"

// DefaultTopEvents は統計で返す上位イベント数
const DefaultTopEvents = 10

// EventStats はイベント別の確定済み予約の集計
type EventStats struct {
	EventID    string `json:"event_id"`
	EventTitle string `json:"event_title"`
	Count      int    `json:"count"`
	Seats      int    `json:"seats"`
	Revenue    int64  `json:"revenue"`
}

// Stats は予約台帳の集計結果
// 取得時点のスナップショットで、表示時には古くなっている可能性がある
type Stats struct {
	TotalBookings     int          `json:"total_bookings"`
	ConfirmedBookings int          `json:"confirmed_bookings"`
	CancelledBookings int          `json:"cancelled_bookings"`
	PendingBookings   int          `json:"pending_bookings"`
	TotalRevenue      int64        `json:"total_revenue"`
	ByEvent           []EventStats `json:"by_event"`
}

// Summarize は予約のスナップショットから集計を計算する
// 売上とイベント別集計は confirmed のみが対象
// 件数が同じイベントはイベントIDの昇順で並べる
func Summarize(bookings []*Booking, topN int) *Stats {
	stats := &Stats{ByEvent: []EventStats{}}
	perEvent := make(map[string]*EventStats)

	for _, b := range bookings {
		stats.TotalBookings++
		switch b.Status {
		case StatusConfirmed:
			stats.ConfirmedBookings++
			stats.TotalRevenue += b.TotalAmount

			es, ok := perEvent[b.EventID]
			if !ok {
				es = &EventStats{EventID: b.EventID}
				perEvent[b.EventID] = es
			}
			es.Count++
			es.Seats += b.Quantity
			es.Revenue += b.TotalAmount
		case StatusCancelled:
			stats.CancelledBookings++
		case StatusPending:
			stats.PendingBookings++
		}
	}

	for _, es := range perEvent {
		stats.ByEvent = append(stats.ByEvent, *es)
	}
	SortEventStats(stats.ByEvent)
	if topN > 0 && len(stats.ByEvent) > topN {
		stats.ByEvent = stats.ByEvent[:topN]
	}
	return stats
}

// SortEventStats は件数の降順、同数ならイベントIDの昇順に並べる
func SortEventStats(items []EventStats) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].EventID < items[j].EventID
	})
}
