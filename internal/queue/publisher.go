package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hitoshi/railwatch/internal/model"
)

// redialInterval は再接続を試行する最小間隔。ブローカー停止中に要求ごとの接続待ちを避ける。
const redialInterval = 5 * time.Second

// publishChannel は発行に使用するamqp091の操作。
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// connChannel は接続と、その上に開いたチャネルを一組で扱う。
type connChannel struct {
	*amqp.Channel
	conn *amqp.Connection
}

// Close はチャネルと接続を閉じる。
func (c connChannel) Close() error {
	c.Channel.Close()
	return c.conn.Close()
}

// IsClosed はチャネルまたは接続が閉じている場合にtrueを返す。
func (c connChannel) IsClosed() bool {
	return c.Channel.IsClosed() || c.conn.IsClosed()
}

// Publisher はトピックへJSONメッセージを発行する。
// amqp091のチャネルはスレッドセーフではないため、発行はミューテックスで直列化する。
// 接続が失われた場合は次回の発行時に再接続する。
type Publisher struct {
	mu       sync.Mutex
	ch       publishChannel
	open     func() (publishChannel, error)
	lastDial time.Time
	exchange string
	logger   *slog.Logger
	now      func() time.Time
}

// NewPublisher はブローカーに接続し、exchangeを宣言したPublisherを返す。
func NewPublisher(amqpURL, exchange string, logger *slog.Logger) (*Publisher, error) {
	open := func() (publishChannel, error) {
		conn, err := dial(amqpURL)
		if err != nil {
			return nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("チャネルの作成に失敗しました: %w", err)
		}
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("exchangeの宣言に失敗しました: %w", err)
		}
		return connChannel{Channel: ch, conn: conn}, nil
	}

	ch, err := open()
	if err != nil {
		return nil, err
	}
	p := newPublisher(ch, exchange, logger)
	p.open = open
	return p, nil
}

func newPublisher(ch publishChannel, exchange string, logger *slog.Logger) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, logger: logger, now: time.Now}
}

// channel は発行可能なチャネルを返す。閉じていれば再接続を試みる。
// 呼び出し側でp.muを保持すること。
func (p *Publisher) channel() (publishChannel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
		p.logger.Warn("ブローカー接続が失われました")
	}
	if p.open == nil {
		return nil, amqp.ErrClosed
	}
	now := p.now()
	if now.Sub(p.lastDial) < redialInterval {
		return nil, fmt.Errorf("ブローカーに未接続です: %w", amqp.ErrClosed)
	}
	p.lastDial = now

	ch, err := p.open()
	if err != nil {
		return nil, fmt.Errorf("ブローカーへの再接続に失敗しました: %w", err)
	}
	p.ch = ch
	p.logger.Info("ブローカーに再接続しました")
	return ch, nil
}

// Publish はbodyをJSONにエンコードし、永続メッセージとしてtopicへ発行する。
// 失敗は *model.ChannelError として返す。
func (p *Publisher) Publish(ctx context.Context, topic string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &model.ChannelError{Topic: topic, Err: fmt.Errorf("メッセージのエンコードに失敗しました: %w", err)}
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         payload,
	}

	p.mu.Lock()
	ch, err := p.channel()
	if err == nil {
		err = ch.PublishWithContext(ctx, p.exchange, topic, false, false, msg)
	}
	p.mu.Unlock()
	if err != nil {
		p.logger.Warn("メッセージの発行に失敗しました",
			slog.String("topic", topic),
			slog.String("message_id", msg.MessageId),
			slog.String("error", err.Error()),
		)
		return &model.ChannelError{Topic: topic, Err: err}
	}

	p.logger.Debug("メッセージを発行しました",
		slog.String("topic", topic),
		slog.String("message_id", msg.MessageId),
	)
	return nil
}

// Close はチャネルと接続を閉じる。以降の発行で再接続はしない。
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = nil
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
}
