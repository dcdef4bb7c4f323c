// Package rabbitmq は予約のドメインイベントを RabbitMQ のキューへ送る
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
)

// 再接続に失敗したあと次の試行までの待ち時間
const redialBackoff = 5 * time.Second

var (
	ErrPublisherClosed = errors.New("パブリッシャーは閉じられています")
	ErrBrokerOffline   = errors.New("RabbitMQに接続していません")
)

// channel は amqp.Channel のうち送信に使う部分
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// session は一本の接続とその上のチャンネル
// どちらかの切断通知が来たら使えなくなる
type session struct {
	ch         channel
	conn       io.Closer
	connClosed <-chan *amqp.Error
	chClosed   <-chan *amqp.Error
}

func (s *session) close() error {
	err := s.ch.Close()
	if s.conn != nil {
		err = errors.Join(err, s.conn.Close())
	}
	return err
}

type dialFunc func() (*session, error)

// Publisher はデフォルトエクスチェンジ経由でイベント種別と同名のキューへ送る
// 接続が切れたら次の送信時に張り直す
type Publisher struct {
	mu      sync.Mutex
	dial    dialFunc
	sess    *session
	backoff time.Duration
	retryAt time.Time
	closed  bool
	log     *zap.Logger
}

var _ booking.Publisher = (*Publisher)(nil)

// NewPublisher はブローカーへ接続し、永続キューを宣言する
func NewPublisher(url string) (*Publisher, error) {
	p := newPublisherWithDialer(dialer(url))
	sess, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.attach(sess)
	return p, nil
}

func newPublisherWithDialer(dial dialFunc) *Publisher {
	return &Publisher{
		dial:    dial,
		backoff: redialBackoff,
		log:     logger.Named("rabbitmq"),
	}
}

func newPublisherWithChannel(ch channel) *Publisher {
	p := newPublisherWithDialer(nil)
	p.sess = &session{ch: ch}
	return p
}

func dialer(url string) dialFunc {
	return func() (*session, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, fmt.Errorf("RabbitMQ接続に失敗しました: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("チャンネルの作成に失敗: %w", err)
		}
		for _, queue := range []booking.EventType{booking.EventConfirmed, booking.EventCancelled} {
			if _, err := ch.QueueDeclare(string(queue), true, false, false, false, nil); err != nil {
				_ = ch.Close()
				_ = conn.Close()
				return nil, fmt.Errorf("キュー %s の宣言に失敗: %w", queue, err)
			}
		}
		return &session{
			ch:         ch,
			conn:       conn,
			connClosed: conn.NotifyClose(make(chan *amqp.Error, 1)),
			chClosed:   ch.NotifyClose(make(chan *amqp.Error, 1)),
		}, nil
	}
}

// Publish はイベントを永続メッセージとして送る
func (p *Publisher) Publish(ctx context.Context, e booking.DomainEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("イベントのエンコードに失敗: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    e.BookingID + ":" + string(e.Type),
		Body:         body,
	}

	// amqp.Channel は並行送信に対応していない
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, err := p.current()
	if err != nil {
		return err
	}
	if err := sess.ch.PublishWithContext(ctx, "", string(e.Type), false, false, msg); err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			p.drop(sess)
		}
		return fmt.Errorf("イベント送信に失敗: %w", err)
	}
	return nil
}

// current は使える session を返す。なければ再接続する
// p.mu を保持して呼ぶ
func (p *Publisher) current() (*session, error) {
	if p.closed {
		return nil, ErrPublisherClosed
	}
	if p.sess != nil {
		return p.sess, nil
	}
	if p.dial == nil || time.Now().Before(p.retryAt) {
		return nil, ErrBrokerOffline
	}

	sess, err := p.dial()
	if err != nil {
		p.retryAt = time.Now().Add(p.backoff)
		return nil, fmt.Errorf("RabbitMQへの再接続に失敗: %w", err)
	}
	p.log.Info("RabbitMQに再接続しました")
	p.attach(sess)
	return sess, nil
}

func (p *Publisher) attach(sess *session) {
	p.sess = sess
	p.retryAt = time.Time{}
	if sess.connClosed != nil || sess.chClosed != nil {
		go p.watch(sess)
	}
}

// watch は切断通知を待ち、届いたら session を捨てる
func (p *Publisher) watch(sess *session) {
	var cause *amqp.Error
	select {
	case cause = <-sess.connClosed:
	case cause = <-sess.chClosed:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess != sess {
		return
	}
	var fields []zap.Field
	if cause != nil {
		fields = append(fields, zap.Int("code", cause.Code), zap.String("reason", cause.Reason))
	}
	p.log.Warn("RabbitMQとの接続が切れました。次の送信で再接続します", fields...)
	p.drop(sess)
}

// drop は p.mu を保持して呼ぶ
func (p *Publisher) drop(sess *session) {
	if p.sess == sess {
		p.sess = nil
	}
	_ = sess.close()
}

// Close はチャンネルと接続を閉じる
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.sess == nil {
		return nil
	}
	sess := p.sess
	p.sess = nil
	return sess.close()
}
