package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "CandleFlow/pkg/logger"
)

const (
	fetchWait     = 3 * time.Second
	commitTimeout = 2 * time.Second
	commitTries   = 3
)

// MessageHandler consumes the payloads of one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads every registered topic through its own group reader and hands
// messages to a fixed pool of workers. Messages of one partition are handled
// one at a time so per-key ordering survives the pool.
type Consumer struct {
	cfg      ConsumerConfig
	l        *applogger.Logger
	hook     ConsumerHook
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      *kafka.Writer

	queue    chan *message
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
	parts    partitionLocks
	metrics  *consumerMetrics
}

type message struct {
	topic string
	data  []byte
	km    kafka.Message
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: brokers are required")
	}
	l := cfg.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &Consumer{
		cfg:      cfg,
		l:        l,
		hook:     HookFuncs{},
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		dlq:      cfg.deadLetterWriter(),
		queue:    make(chan *message, cfg.BufferSize),
		quit:     make(chan struct{}),
		parts:    partitionLocks{m: make(map[partitionKey]*sync.Mutex)},
		metrics:  loadConsumerMetrics(),
	}, nil
}

// RegisterHandler binds a handler to its topic. The first handler for a topic wins.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, dup := c.handlers[topic]; dup {
		c.l.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// WithConsumerHook replaces the lifecycle hook. Nil is ignored.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = c.cfg.reader(topic)
	}

	c.wg.Add(c.cfg.WorkerCount + len(c.readers))
	for i := 0; i < c.cfg.WorkerCount; i++ {
		go c.work()
	}
	for topic, r := range c.readers {
		go c.fetch(topic, r)
	}

	c.l.Info("kafka consumer started",
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.Strings("topics", c.topics()),
		applogger.String("group", c.cfg.GroupID),
	)
	return nil
}

// Stop closes the readers and waits for in-flight messages until ctx expires.
// Calls after the first return nil.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.quitOnce.Do(func() {
		close(c.quit)
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.l.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka: consumer stop: %w", ctx.Err())
		}

		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.l.Warn("kafka dlq writer close failed", applogger.Error(cerr))
			}
		}
		if err == nil {
			c.l.Info("kafka consumer stopped")
		}
	})
	return err
}

func (c *Consumer) stopping() bool {
	select {
	case <-c.quit:
		return true
	default:
		return false
	}
}

func (c *Consumer) topics() []string {
	out := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		out = append(out, topic)
	}
	return out
}

// fetch pulls from one reader into the shared queue. A full queue blocks the
// reader rather than dropping messages.
func (c *Consumer) fetch(topic string, r *kafka.Reader) {
	defer c.wg.Done()
	for !c.stopping() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchWait)
		km, err := r.FetchMessage(ctx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			continue
		}
		if err != nil {
			if c.stopping() {
				return
			}
			c.l.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			time.Sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, 3))
			continue
		}

		select {
		case c.queue <- &message{topic: topic, data: km.Value, km: km}:
			c.metrics.queueDepth.WithLabelValues(topic).Set(float64(len(c.queue)))
		case <-c.quit:
			return
		}
	}
}

func (c *Consumer) work() {
	defer c.wg.Done()
	for {
		select {
		case <-c.quit:
			return
		case msg := <-c.queue:
			_ = c.process(msg)
		}
	}
}

// process runs the handler with retries, dead-letters the message if it still
// fails, and commits its offset. It returns the final handler error.
func (c *Consumer) process(msg *message) (err error) {
	h, ok := c.handlers[msg.topic]
	if !ok {
		return nil
	}
	unlock := c.parts.lock(msg.topic, msg.km.Partition)
	defer unlock()

	attempts, err := c.handleWithRetry(h, msg)
	if err != nil {
		safeOnError(c.hook, context.Background(), msg.topic, msg.km, msg.data, err)
		c.l.Error("kafka message failed",
			applogger.String("topic", msg.topic),
			applogger.Int("attempts", attempts),
			applogger.Bool("permanent", IsPermanent(err)),
			applogger.Error(err),
		)
		c.metrics.failures.WithLabelValues(msg.topic).Inc()
		c.deadLetter(msg, err)
	}

	// a dead-lettered message is committed too, or it would be redelivered forever
	if err == nil || c.dlq != nil {
		c.commit(msg)
	}
	return err
}

func (c *Consumer) handleWithRetry(h MessageHandler, msg *message) (attempts int, err error) {
	for {
		attempts++
		err = c.handleOnce(h, msg)
		if err == nil || IsPermanent(err) || attempts > c.cfg.RetryMax {
			return attempts, err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.quit:
			return attempts, err
		}
	}
}

// handleOnce runs the hooks and the handler once. A panicking handler counts as
// a permanent failure.
func (c *Consumer) handleOnce(h MessageHandler, msg *message) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("panic in handler: %v", r))
			c.l.Error("kafka handler panicked", applogger.String("topic", msg.topic), applogger.Error(err))
		}
		c.metrics.handleSeconds.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())
	}()

	ctx, data, err := c.hook.BeforeHandle(context.Background(), msg.topic, msg.km, msg.data)
	if err != nil {
		return Permanent(err)
	}
	err = h.Handle(ctx, data)
	safeAfter(c.hook, ctx, msg.topic, msg.km, data, err)
	return err
}

func (c *Consumer) deadLetter(msg *message, cause error) {
	if c.dlq == nil {
		return
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Key:   msg.km.Key,
		Value: msg.data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(msg.topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.l.Error("kafka dlq write failed", applogger.String("dlq", c.cfg.DLQTopic), applogger.Error(err))
	}
}

func (c *Consumer) commit(msg *message) {
	r := c.readers[msg.topic]
	if r == nil {
		return
	}
	var err error
	for attempt := 1; attempt <= commitTries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
		err = r.CommitMessages(ctx, msg.km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.l.Error("kafka commit failed",
		applogger.String("topic", msg.topic),
		applogger.Int64("offset", msg.km.Offset),
		applogger.Error(err),
	)
}

type partitionKey struct {
	topic     string
	partition int
}

type partitionLocks struct {
	mu sync.Mutex
	m  map[partitionKey]*sync.Mutex
}

func (p *partitionLocks) lock(topic string, partition int) (unlock func()) {
	k := partitionKey{topic, partition}
	p.mu.Lock()
	l, ok := p.m[k]
	if !ok {
		l = &sync.Mutex{}
		p.m[k] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// backoffWithJitter doubles min per attempt up to max and subtracts up to half
// of the result at random.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := max
	if attempt < 1 {
		attempt = 1
	}
	if attempt < 32 {
		if e := min << uint(attempt-1); e > 0 && e < max {
			d = e
		}
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}

type consumerMetrics struct {
	queueDepth    *prometheus.GaugeVec
	handleSeconds *prometheus.HistogramVec
	failures      *prometheus.CounterVec
}

var (
	sharedConsumerMetrics *consumerMetrics
	consumerMetricsOnce   sync.Once
)

// loadConsumerMetrics registers the collectors on first use. Every consumer in
// the process shares them.
func loadConsumerMetrics() *consumerMetrics {
	consumerMetricsOnce.Do(func() {
		sharedConsumerMetrics = &consumerMetrics{
			queueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "candleflow_kafka_consumer_queue_depth",
				Help: "Fetched messages waiting for a worker",
			}, []string{"topic"}),
			handleSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name: "candleflow_kafka_consumer_handle_seconds",
				Help: "Time spent in the handler per attempt",
			}, []string{"topic"}),
			failures: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "candleflow_kafka_consumer_failures_total",
				Help: "Messages that still failed after retries",
			}, []string{"topic"}),
		}
	})
	return sharedConsumerMetrics
}
