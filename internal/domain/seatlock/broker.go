package seatlock

import "context"

// Subscriber はイベントのルームに参加している接続
type Subscriber interface {
	// ID は接続ごとに一意なクライアントID
	ID() string
	// Deliver はブロックせずに信号を渡す。受け取れなければ false
	Deliver(s Signal) bool
}

// Broker はイベントIDごとのルームへ信号を配る
// 配信は fire-and-forget で、送信元には返さない
type Broker interface {
	Join(eventID string, sub Subscriber)
	Leave(eventID string, sub Subscriber)
	Publish(ctx context.Context, s Signal)
}

// Relay は他ノードのルームへ信号を中継する
type Relay interface {
	// Publish は自ノードで発生した信号を他ノードへ送る
	Publish(ctx context.Context, s Signal) error
	// Listen は他ノードからの信号を deliver に渡し続ける（ctx 終了まで）
	Listen(ctx context.Context, deliver func(Signal)) error
}
