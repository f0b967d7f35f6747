package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	domrepo "CandleFlow/internal/domain/repository"
	applogger "CandleFlow/pkg/logger"
)

// ErrRegistryClosed is returned by Subscribe after Close.
var ErrRegistryClosed = errors.New("channel registry closed")

// ChannelTask is the background work bound to one channel. Run must return promptly once ctx is done.
type ChannelTask interface {
	Run(ctx context.Context)
}

// RefresherFactory builds the background task for a newly populated channel.
type RefresherFactory interface {
	NewRefresher(key domrepo.ChannelKey, subs SubscriberSet) ChannelTask
}

// ChannelStats is a point-in-time view of one channel.
type ChannelStats struct {
	Channel     string `json:"channel"`
	Subscribers int    `json:"subscribers"`
	Refreshing  bool   `json:"refreshing"`
}

// channel pairs a subscriber set with its refresher handle. mu serializes every
// change to that pair; subs is copy-on-write so broadcasts read it without mu.
type channel struct {
	key  domrepo.ChannelKey
	mu   sync.Mutex
	subs atomic.Pointer[[]domrepo.Subscriber]

	cancel  context.CancelFunc
	done    chan struct{}
	retired bool
}

func newChannel(key domrepo.ChannelKey) *channel {
	ch := &channel{key: key}
	empty := []domrepo.Subscriber{}
	ch.subs.Store(&empty)
	return ch
}

// Snapshot returns the current subscribers. The slice must not be modified.
func (ch *channel) Snapshot() []domrepo.Subscriber {
	return *ch.subs.Load()
}

// ChannelRegistry owns the live channels: who is subscribed and whether a refresher runs.
// A channel has a running refresher iff it has at least one subscriber.
type ChannelRegistry struct {
	mu       sync.Mutex
	channels map[domrepo.ChannelKey]*channel
	closed   bool

	factory RefresherFactory
	baseCtx context.Context
	stopAll context.CancelFunc
	running atomic.Int64

	l       *applogger.Logger
	metrics domrepo.Metrics
}

// NewChannelRegistry creates an empty registry. Refreshers are derived from an internal
// context cancelled by Close.
func NewChannelRegistry(factory RefresherFactory, l *applogger.Logger, metrics domrepo.Metrics) *ChannelRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChannelRegistry{
		channels: make(map[domrepo.ChannelKey]*channel),
		factory:  factory,
		baseCtx:  ctx,
		stopAll:  cancel,
		l:        l,
		metrics:  metrics,
	}
}

// Subscribe adds sub to the channel, starting its refresher if sub is the first subscriber.
// Subscribing the same subscriber ID twice is a no-op.
func (r *ChannelRegistry) Subscribe(key domrepo.ChannelKey, sub domrepo.Subscriber) error {
	if key.Symbol == "" || !domrepo.IsValidTimeframe(key.Timeframe) {
		return fmt.Errorf("%w: %q", domrepo.ErrInvalidChannelKey, key.String())
	}
	for {
		ch, err := r.acquire(key)
		if err != nil {
			return err
		}
		ch.mu.Lock()
		if ch.retired {
			// lost a race with the last unsubscribe; the channel is gone, take a fresh one
			ch.mu.Unlock()
			continue
		}
		n := r.addLocked(ch, sub)
		ch.mu.Unlock()
		r.l.Info("subscriber joined",
			applogger.String("channel", key.String()),
			applogger.String("subscriber", sub.ID()),
			applogger.Int("subscribers", n),
		)
		return nil
	}
}

// Unsubscribe removes sub. When the set becomes empty the refresher is cancelled and
// awaited before the channel is dropped, so no second refresher can overlap it.
func (r *ChannelRegistry) Unsubscribe(key domrepo.ChannelKey, sub domrepo.Subscriber) {
	r.mu.Lock()
	ch := r.channels[key]
	r.mu.Unlock()
	if ch == nil {
		return
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.retired {
		return
	}

	cur := ch.Snapshot()
	next := make([]domrepo.Subscriber, 0, len(cur))
	for _, s := range cur {
		if s.ID() != sub.ID() {
			next = append(next, s)
		}
	}
	if len(next) == len(cur) {
		return
	}
	ch.subs.Store(&next)
	r.metrics.RecordSubscribers(key.String(), len(next))
	r.l.Info("subscriber left",
		applogger.String("channel", key.String()),
		applogger.String("subscriber", sub.ID()),
		applogger.Int("subscribers", len(next)),
	)

	if len(next) == 0 {
		r.retireLocked(ch)
	}
}

// Snapshot returns the subscribers of key, or nil if the channel does not exist.
func (r *ChannelRegistry) Snapshot(key domrepo.ChannelKey) []domrepo.Subscriber {
	r.mu.Lock()
	ch := r.channels[key]
	r.mu.Unlock()
	if ch == nil {
		return nil
	}
	return ch.Snapshot()
}

// SetFor returns a SubscriberSet that always reads the current subscribers of key.
func (r *ChannelRegistry) SetFor(key domrepo.ChannelKey) SubscriberSet {
	return SubscriberSetFunc(func() []domrepo.Subscriber { return r.Snapshot(key) })
}

// KeysWithPrefix lists live channels whose "SYMBOL-TF" form starts with prefix, sorted.
func (r *ChannelRegistry) KeysWithPrefix(prefix string) []domrepo.ChannelKey {
	r.mu.Lock()
	keys := make([]domrepo.ChannelKey, 0, len(r.channels))
	for k := range r.channels {
		if k.HasPrefix(prefix) {
			keys = append(keys, k)
		}
	}
	r.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Stats reports every live channel, sorted by key.
func (r *ChannelRegistry) Stats() []ChannelStats {
	r.mu.Lock()
	chans := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chans = append(chans, ch)
	}
	r.mu.Unlock()

	out := make([]ChannelStats, 0, len(chans))
	for _, ch := range chans {
		ch.mu.Lock()
		if !ch.retired {
			out = append(out, ChannelStats{
				Channel:     ch.key.String(),
				Subscribers: len(ch.Snapshot()),
				Refreshing:  ch.cancel != nil,
			})
		}
		ch.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// RunningRefreshers counts refresher goroutines that have not yet exited.
func (r *ChannelRegistry) RunningRefreshers() int {
	return int(r.running.Load())
}

// Close stops every refresher and waits for each to exit. Later Subscribe calls fail.
func (r *ChannelRegistry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	chans := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chans = append(chans, ch)
	}
	r.mu.Unlock()

	r.stopAll()
	for _, ch := range chans {
		ch.mu.Lock()
		if !ch.retired {
			r.retireLocked(ch)
		}
		ch.mu.Unlock()
	}
	r.l.Info("channel registry closed", applogger.Int("channels", len(chans)))
}

func (r *ChannelRegistry) acquire(key domrepo.ChannelKey) (*channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	ch, ok := r.channels[key]
	if !ok {
		ch = newChannel(key)
		r.channels[key] = ch
	}
	return ch, nil
}

// addLocked requires ch.mu.
func (r *ChannelRegistry) addLocked(ch *channel, sub domrepo.Subscriber) int {
	cur := ch.Snapshot()
	for _, s := range cur {
		if s.ID() == sub.ID() {
			return len(cur)
		}
	}
	next := make([]domrepo.Subscriber, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, sub)
	ch.subs.Store(&next)
	r.metrics.RecordSubscribers(ch.key.String(), len(next))

	if ch.cancel == nil {
		r.startLocked(ch)
	}
	return len(next)
}

// startLocked requires ch.mu.
func (r *ChannelRegistry) startLocked(ch *channel) {
	ctx, cancel := context.WithCancel(r.baseCtx)
	done := make(chan struct{})
	task := r.factory.NewRefresher(ch.key, ch)
	ch.cancel = cancel
	ch.done = done

	r.running.Add(1)
	r.metrics.RecordRefresherActive(1)
	go func() {
		defer close(done)
		defer r.metrics.RecordRefresherActive(-1)
		defer r.running.Add(-1)
		task.Run(ctx)
	}()
	r.l.Info("refresher started", applogger.String("channel", ch.key.String()))
}

// retireLocked requires ch.mu. It cancels the refresher, waits for it, and unlinks the channel.
func (r *ChannelRegistry) retireLocked(ch *channel) {
	if ch.cancel != nil {
		ch.cancel()
		<-ch.done
		ch.cancel = nil
		ch.done = nil
		r.l.Info("refresher stopped", applogger.String("channel", ch.key.String()))
	}
	ch.retired = true

	r.mu.Lock()
	if r.channels[ch.key] == ch {
		delete(r.channels, ch.key)
	}
	r.mu.Unlock()
	r.metrics.RecordSubscribers(ch.key.String(), 0)
}
