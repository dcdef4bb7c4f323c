package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLeaseHeld     = errors.New("リースは他のノードが保持しています")
	ErrLeaseNotOwned = errors.New("リースの所有者ではありません")
)

const (
	releaseScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	extendScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
)

// LeaseManager はノード間で一つだけ実行させたい定期処理のリースを管理する
// 予約処理の同期には使わない（在庫の同期は条件付きUPDATEのみ）
type LeaseManager struct {
	client   *redis.Client
	newToken func() string
}

func NewLeaseManager(client *redis.Client) *LeaseManager {
	return &LeaseManager{client: client, newToken: uuid.NewString}
}

// Lease は取得済みのリース
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// TryAcquire はリースを取得する。他ノードが保持中なら ErrLeaseHeld
func (m *LeaseManager) TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	key := leaseKey(name)
	token := m.newToken()

	ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("リース取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	return &Lease{client: m.client, key: key, token: token}, nil
}

// Release は自分が保持している場合だけリースを削除する
func (l *Lease) Release(ctx context.Context) error {
	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("リース解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLeaseNotOwned
	}
	return nil
}

// Extend はリースの有効期限を延長する
func (l *Lease) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("リース延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLeaseNotOwned
	}
	return nil
}

func leaseKey(name string) string {
	return fmt.Sprintf("lease:%s", name)
}
