package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "CandleFlow/internal/domain/repository"
	applogger "CandleFlow/pkg/logger"
)

// SubscriberSet yields an immutable view of a channel's subscribers.
type SubscriberSet interface {
	Snapshot() []domrepo.Subscriber
}

// SubscriberSetFunc adapts a function to SubscriberSet.
type SubscriberSetFunc func() []domrepo.Subscriber

func (f SubscriberSetFunc) Snapshot() []domrepo.Subscriber { return f() }

// Broadcaster delivers one message to every subscriber of a channel.
// Delivery is best-effort and at most once per subscriber per call.
type Broadcaster struct {
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewBroadcaster(l *applogger.Logger, metrics domrepo.Metrics) *Broadcaster {
	return &Broadcaster{l: l, metrics: metrics}
}

// Broadcast sends msg to a snapshot of set and returns how many sends succeeded.
// A failing subscriber is logged and skipped; it never aborts delivery to the rest.
func (b *Broadcaster) Broadcast(ctx context.Context, channel string, set SubscriberSet, msg []byte) int {
	subs := set.Snapshot()
	if len(subs) == 0 {
		return 0
	}

	start := time.Now()
	delivered := 0
	for _, sub := range subs {
		if err := b.send(ctx, sub, msg); err != nil {
			b.metrics.RecordSendFailure(channel)
			b.l.Warn("send to subscriber failed",
				applogger.String("channel", channel),
				applogger.String("subscriber", sub.ID()),
				applogger.Error(err),
			)
			continue
		}
		delivered++
	}
	b.metrics.RecordBroadcast(channel, delivered)
	b.metrics.RecordLatency("broadcast", time.Since(start).Seconds())
	return delivered
}

func (b *Broadcaster) send(ctx context.Context, sub domrepo.Subscriber, msg []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in send: %v", r)
		}
	}()
	return sub.Send(ctx, msg)
}
