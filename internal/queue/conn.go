package queue

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// dialTimeout はブローカーへの接続タイムアウト。
const dialTimeout = 10 * time.Second

// channel はPublisher/Consumerが使用するamqp091の操作。テストで差し替える。
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Close() error
}

// sanitizeURL は前後の空白や引用符を取り除き、スキームを検証する。
func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("AMQP URLの解析に失敗しました: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP URLのスキームは amqp:// または amqps:// である必要があります")
	}
	return clean, nil
}

// dial はタイムアウト付きでブローカーに接続する。
func dial(rawURL string) (*amqp.Connection, error) {
	cleanURL, err := sanitizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("ブローカーへの接続に失敗しました: %w", err)
	}
	return conn, nil
}

// declareTopology はexchangeとトピックのキューを宣言し、束縛する。
func declareTopology(ch channel, exchange, topic string) (string, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("exchangeの宣言に失敗しました: %w", err)
	}

	q, err := ch.QueueDeclare(QueueName(exchange, topic), true, false, false, false, nil)
	if err != nil {
		return "", fmt.Errorf("キューの宣言に失敗しました: %w", err)
	}

	if err := ch.QueueBind(q.Name, topic, exchange, false, nil); err != nil {
		return "", fmt.Errorf("キューの束縛に失敗しました: %w", err)
	}
	return q.Name, nil
}
