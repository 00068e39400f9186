package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler は1件のメッセージ本文を処理する。
// 返したエラーはログに記録されるのみで、メッセージは常にackされる。
type Handler func(ctx context.Context, body []byte) error

// Consumer はトピックごとのキューを購読し、ハンドラへ配送する。
// 購読ごとに専用チャネルを開き、prefetchを並列数に合わせる。
type Consumer struct {
	conn        *amqp.Connection
	openChannel func() (channel, error)
	exchange    string
	logger      *slog.Logger

	mu       sync.Mutex
	channels []channel
	wg       sync.WaitGroup

	// lost は配送が途絶したトピックのエラーを受け取る。
	lost     chan error
	stop     chan struct{}
	stopOnce sync.Once
}

// NewConsumer はブローカーに接続したConsumerを返す。
func NewConsumer(amqpURL, exchange string, logger *slog.Logger) (*Consumer, error) {
	conn, err := dial(amqpURL)
	if err != nil {
		return nil, err
	}

	c := newConsumer(func() (channel, error) { return conn.Channel() }, exchange, logger)
	c.conn = conn
	return c, nil
}

func newConsumer(open func() (channel, error), exchange string, logger *slog.Logger) *Consumer {
	return &Consumer{
		openChannel: open,
		exchange:    exchange,
		logger:      logger,
		lost:        make(chan error, 1),
		stop:        make(chan struct{}),
	}
}

// Subscribe はtopicのキューを宣言して購読を開始し、concurrency個のワーカーで処理する。
// ワーカーはctxのキャンセル、Runの終了、または配送チャネルのクローズで終了する。
// チャネル単位のクローズで全ワーカーが終了した場合はRunにエラーを通知する。
func (c *Consumer) Subscribe(ctx context.Context, topic string, concurrency int, h Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	ch, err := c.openChannel()
	if err != nil {
		return fmt.Errorf("チャネルの作成に失敗しました: %w", err)
	}

	queueName, err := declareTopology(ch, c.exchange, topic)
	if err != nil {
		ch.Close()
		return err
	}

	if err := ch.Qos(concurrency, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("prefetchの設定に失敗しました: %w", err)
	}

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("購読の開始に失敗しました: %w", err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	c.mu.Lock()
	c.channels = append(c.channels, ch)
	c.mu.Unlock()

	var workers sync.WaitGroup
	for range concurrency {
		c.wg.Add(1)
		workers.Add(1)
		go func() {
			defer c.wg.Done()
			defer workers.Done()
			c.serve(ctx, topic, deliveries, h)
		}()
	}
	go c.watch(ctx, topic, &workers, closed)

	c.logger.Info("キューの購読を開始しました",
		slog.String("topic", topic),
		slog.String("queue", queueName),
		slog.Int("concurrency", concurrency),
	)
	return nil
}

func (c *Consumer) serve(ctx context.Context, topic string, deliveries <-chan amqp.Delivery, h Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.dispatch(ctx, topic, d, h)
		}
	}
}

// watch はtopicの全ワーカーの終了を待ち、停止要求によるものでなければRunへ通知する。
func (c *Consumer) watch(ctx context.Context, topic string, workers *sync.WaitGroup, closed <-chan *amqp.Error) {
	workers.Wait()
	if ctx.Err() != nil {
		return
	}
	select {
	case <-c.stop:
		return
	default:
	}

	err := fmt.Errorf("トピック %s の配送チャネルが閉じられました", topic)
	select {
	case amqpErr, ok := <-closed:
		if ok && amqpErr != nil {
			err = fmt.Errorf("トピック %s のチャネルが閉じられました: %w", topic, amqpErr)
		}
	default:
	}

	c.logger.Error("キューの購読が停止しました",
		slog.String("topic", topic),
		slog.String("error", err.Error()),
	)
	select {
	case c.lost <- err:
	default:
	}
}

// dispatch はハンドラを実行し、結果に関わらずメッセージをackする。
// ハンドラのpanicは回収してログに記録する。
func (c *Consumer) dispatch(ctx context.Context, topic string, d amqp.Delivery, h Handler) {
	defer func() {
		if err := d.Ack(false); err != nil {
			c.logger.Error("メッセージのackに失敗しました",
				slog.String("topic", topic),
				slog.String("message_id", d.MessageId),
				slog.String("error", err.Error()),
			)
		}
	}()

	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("メッセージ処理中にpanicが発生しました",
				slog.String("topic", topic),
				slog.String("message_id", d.MessageId),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if err := h(ctx, d.Body); err != nil {
		c.logger.Error("メッセージの処理に失敗しました",
			slog.String("topic", topic),
			slog.String("message_id", d.MessageId),
			slog.String("error", err.Error()),
		)
	}
}

// Run はctxのキャンセル、ブローカー接続の切断、またはいずれかのトピックの配送停止まで待機し、
// 全ワーカーを停止させてから戻る。
// 接続の切断または配送の停止ではエラーを返し、プロセスの再起動に委ねる。
func (c *Consumer) Run(ctx context.Context) error {
	var closed chan *amqp.Error
	if c.conn != nil {
		closed = c.conn.NotifyClose(make(chan *amqp.Error, 1))
	}

	var err error
	select {
	case <-ctx.Done():
	case amqpErr, ok := <-closed:
		if ok && amqpErr != nil {
			err = fmt.Errorf("ブローカー接続が切断されました: %w", amqpErr)
		} else {
			err = errors.New("ブローカー接続が切断されました")
		}
	case err = <-c.lost:
	}

	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
	c.closeChannels()
	return err
}

func (c *Consumer) closeChannels() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.channels {
		ch.Close()
	}
	c.channels = nil
}

// Close は全チャネルと接続を閉じる。
func (c *Consumer) Close() {
	c.closeChannels()
	if c.conn != nil {
		c.conn.Close()
	}
}
