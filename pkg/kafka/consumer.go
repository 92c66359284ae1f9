package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"MoexPull/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const (
	commitAttempts  = 3
	deadLetterWait  = 5 * time.Second
	commitWait      = 2 * time.Second
	fetchErrorPause = time.Second
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type delivery struct {
	topic  string
	reader messageReader
	msg    kafka.Message
}

// Consumer reads registered topics into a pool of workers. Each partition
// is pinned to one worker, so its messages are handled and committed in
// fetch order.
// A failing handler is retried with jittered backoff; after the last retry
// the message goes to the dead-letter topic (if any) and is committed so
// the partition keeps moving.
type Consumer struct {
	cfg       ConsumerConfig
	log       *logger.Logger
	metrics   *clientMetrics
	hooks     *HookChain
	handlers  map[string]MessageHandler
	readers   map[string]messageReader
	newReader func(topic string) messageReader
	dlq       messageWriter
	queues    []chan delivery

	ctx      context.Context
	cancel   context.CancelFunc
	fetchers sync.WaitGroup
	workers  sync.WaitGroup
	stopOnce sync.Once
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the logger for lifecycle and handler failures.
func WithConsumerLogger(l *logger.Logger) ConsumerOption {
	return func(c *Consumer) {
		if l != nil {
			c.log = l
		}
	}
}

// WithConsumerHooks installs hooks around every handling attempt.
func WithConsumerHooks(hooks ...ConsumerHook) ConsumerOption {
	return func(c *Consumer) { c.hooks = NewHookChain(hooks...) }
}

func withReaderFactory(f func(topic string) messageReader) ConsumerOption {
	return func(c *Consumer) { c.newReader = f }
}

func withDeadLetterWriter(w messageWriter) ConsumerOption {
	return func(c *Consumer) { c.dlq = w }
}

// NewConsumer builds a consumer for cfg. Handlers are added with
// RegisterHandler before Start.
func NewConsumer(cfg ConsumerConfig, opts ...ConsumerOption) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	cfg = cfg.withDefaults()

	c := &Consumer{
		cfg:      cfg,
		log:      logger.Nop(),
		metrics:  loadMetrics(),
		hooks:    NewHookChain(),
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]messageReader),
		queues:   make([]chan delivery, cfg.Workers),
	}
	for i := range c.queues {
		c.queues[i] = make(chan delivery, cfg.BufferSize)
	}
	c.newReader = c.groupReader
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(logger.String("component", "kafka_consumer"))

	if c.dlq == nil && cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}}
	}
	return c, nil
}

func (c *Consumer) groupReader(topic string) messageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		GroupID:     c.cfg.GroupID,
		Topic:       topic,
		MinBytes:    c.cfg.MinBytes,
		MaxBytes:    c.cfg.MaxBytes,
		StartOffset: kafka.FirstOffset,
	})
}

// RegisterHandler adds h for its topic. A second handler for the same topic
// is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// Start opens one reader per registered topic and starts the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka: no handlers registered")
	}
	if c.ctx != nil {
		return errors.New("kafka: consumer already started")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	for _, q := range c.queues {
		c.workers.Add(1)
		go c.work(q)
	}
	for topic := range c.handlers {
		r := c.newReader(topic)
		c.readers[topic] = r
		c.fetchers.Add(1)
		go c.fetch(topic, r)
	}

	c.log.Info("started",
		logger.Int("workers", c.cfg.Workers),
		logger.Int("topics", len(c.readers)),
		logger.String("group_id", c.cfg.GroupID),
	)
	return nil
}

// Stop halts fetching, lets in-flight messages finish and closes the readers.
// Queued messages that were not handled yet stay uncommitted and are
// redelivered to the group.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()
		if err = waitGroup(ctx, &c.fetchers); err == nil {
			for _, q := range c.queues {
				close(q)
			}
			err = waitGroup(ctx, &c.workers)
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Error("close reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Error("close dead-letter writer", logger.Error(cerr))
			}
		}
		if err == nil {
			c.log.Info("stopped")
		}
	})
	return err
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("kafka: waiting for consumer to stop: %w", ctx.Err())
	}
}

func (c *Consumer) fetch(topic string, r messageReader) {
	defer c.fetchers.Done()
	for {
		msg, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Error("fetch message", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(fetchErrorPause):
				continue
			case <-c.ctx.Done():
				return
			}
		}

		q := c.queueFor(topic, msg.Partition)
		select {
		case q <- delivery{topic: topic, reader: r, msg: msg}:
			c.metrics.queueDepth.WithLabelValues(topic).Set(float64(len(q)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) queueFor(topic string, partition int) chan delivery {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	_, _ = h.Write([]byte{byte(partition >> 24), byte(partition >> 16), byte(partition >> 8), byte(partition)})
	return c.queues[h.Sum32()%uint32(len(c.queues))]
}

func (c *Consumer) work(q <-chan delivery) {
	defer c.workers.Done()
	for d := range q {
		c.process(d)
	}
}

func (c *Consumer) process(d delivery) {
	h, ok := c.handlers[d.topic]
	if !ok || c.ctx.Err() != nil {
		return
	}

	start := time.Now()
	outcome := c.handleWithRetry(h, d)
	c.metrics.observeHandle(d.topic, outcome, time.Since(start))
	if outcome != outcomeAborted {
		c.commit(d)
	}
}

func (c *Consumer) handleWithRetry(h MessageHandler, d delivery) string {
	var err error
	attempts := 0
	for {
		attempts++
		if err = c.attempt(h, d); err == nil {
			return outcomeOK
		}
		if attempts > c.cfg.RetryMax {
			break
		}
		select {
		case <-time.After(backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.ctx.Done():
			return outcomeAborted
		}
	}

	c.log.Error("handler gave up",
		logger.String("topic", d.topic),
		logger.Int("partition", d.msg.Partition),
		logger.Int64("offset", d.msg.Offset),
		logger.Int("attempts", attempts),
		logger.Error(err),
	)
	if c.deadLetter(d, err) {
		return outcomeDeadLettered
	}
	return outcomeDropped
}

func (c *Consumer) attempt(h MessageHandler, d delivery) error {
	ctx, km, data, err := c.hooks.BeforeHandle(context.Background(), d.topic, d.msg, d.msg.Value)
	if err != nil {
		return err
	}
	err = safeHandle(ctx, h, data)
	c.hooks.AfterHandle(ctx, d.topic, km, data, err)
	if err != nil {
		c.hooks.OnError(ctx, d.topic, km, data, err)
	}
	return err
}

func safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, data)
}

func (c *Consumer) deadLetter(d delivery, cause error) bool {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return false
	}
	headers := append([]kafka.Header(nil), d.msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "source_topic", Value: []byte(d.topic)},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)

	ctx, cancel := context.WithTimeout(context.Background(), deadLetterWait)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     d.msg.Key,
		Value:   d.msg.Value,
		Headers: headers,
		Time:    time.Now(),
	})
	if err != nil {
		c.log.Error("write dead letter", logger.String("topic", c.cfg.DLQTopic), logger.Error(err))
		return false
	}
	return true
}

func (c *Consumer) commit(d delivery) {
	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), commitWait)
		err = d.reader.CommitMessages(ctx, d.msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("commit offset",
		logger.String("topic", d.topic),
		logger.Int64("offset", d.msg.Offset),
		logger.Error(err),
	)
}

// backoff doubles from lo per attempt, caps at hi and takes off up to half as jitter.
func backoff(lo, hi time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := lo
	for i := 1; i < attempt && d < hi; i++ {
		d *= 2
	}
	if d > hi {
		d = hi
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}
