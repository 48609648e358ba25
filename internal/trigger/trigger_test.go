package trigger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Coalesces(t *testing.T) {
	q := NewQueue()
	assert.True(t, q.Offer(Signal{Source: "a"}))
	assert.False(t, q.Offer(Signal{Source: "b"}))
	assert.False(t, q.Offer(Signal{Source: "c"}))

	sig := <-q.slot
	assert.Equal(t, "a", sig.Source)
	assert.True(t, q.Offer(Signal{Source: "d"}))
}

func TestQueue_RunsSequentially(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var active, maxActive, runs int32
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	done := make(chan error)
	go func() {
		done <- q.Run(ctx, func(context.Context, Signal) error {
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			atomic.AddInt32(&runs, 1)
			started <- struct{}{}
			<-release
			atomic.AddInt32(&active, -1)
			return errors.New("run failed")
		})
	}()

	require.True(t, q.Offer(Signal{Source: "first"}))
	<-started

	assert.True(t, q.Offer(Signal{Source: "second"}), "one signal may wait behind the active run")
	assert.False(t, q.Offer(Signal{Source: "third"}), "further signals coalesce")

	release <- struct{}{}
	<-started
	release <- struct{}{}

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

type fakeSubscription struct {
	receiveErr error
	messages   chan *redis.Message
	closed     bool
}

func (f *fakeSubscription) Receive(context.Context) (interface{}, error) {
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	return &redis.Subscription{Kind: "subscribe", Channel: "pnl-data-refreshed", Count: 1}, nil
}

func (f *fakeSubscription) Channel(...redis.ChannelOption) <-chan *redis.Message { return f.messages }

func (f *fakeSubscription) Close() error {
	f.closed = true
	return nil
}

func fakeSource(sub *fakeSubscription) *RedisSource {
	return &RedisSource{
		topic:     "pnl-data-refreshed",
		subscribe: func(context.Context, string) subscription { return sub },
	}
}

func TestRedisSource_ForwardsMessages(t *testing.T) {
	sub := &fakeSubscription{messages: make(chan *redis.Message, 2)}
	sub.messages <- &redis.Message{Channel: "pnl-data-refreshed", Payload: `"initiate"`}
	sub.messages <- &redis.Message{Channel: "pnl-data-refreshed", Payload: `"again"`}
	close(sub.messages)

	var got []Signal
	err := fakeSource(sub).Listen(context.Background(), func(sig Signal) { got = append(got, sig) })

	assert.ErrorIs(t, err, ErrSubscriptionClosed)
	require.Len(t, got, 2)
	assert.Equal(t, "redis", got[0].Source)
	assert.Equal(t, `"initiate"`, got[0].Payload)
	assert.True(t, sub.closed)
}

func TestRedisSource_SubscribeFailure(t *testing.T) {
	sub := &fakeSubscription{receiveErr: errors.New("connection refused")}
	err := fakeSource(sub).Listen(context.Background(), func(Signal) { t.Fatal("unexpected signal") })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, sub.closed)
}

func TestRedisSource_StopsOnCancel(t *testing.T) {
	sub := &fakeSubscription{messages: make(chan *redis.Message)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, fakeSource(sub).Listen(ctx, func(Signal) {}))
}

type fakePublisher struct {
	channel string
	message interface{}
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel, f.message = channel, message
	return redis.NewIntResult(1, nil)
}

func TestPublish(t *testing.T) {
	p := &fakePublisher{}
	n, err := Publish(context.Background(), p, "pnl-data-refreshed")

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "pnl-data-refreshed", p.channel)
	assert.Equal(t, []byte(`"initiate"`), p.message)
}

func TestNewCronSource(t *testing.T) {
	_, err := NewCronSource("every tuesday")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	src, err := NewCronSource("0 6 * * *")
	require.NoError(t, err)
	from := time.Date(2026, time.January, 31, 7, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, time.February, 1, 6, 0, 0, 0, time.Local), src.Next(from))
}

func TestCronSource_Fires(t *testing.T) {
	src, err := NewCronSource("@every 1s")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fired := make(chan Signal, 1)
	done := make(chan error)
	go func() {
		done <- src.Listen(ctx, func(sig Signal) {
			select {
			case fired <- sig:
			default:
			}
		})
	}()

	select {
	case sig := <-fired:
		assert.Equal(t, "schedule", sig.Source)
	case <-ctx.Done():
		t.Fatal("schedule never fired")
	}
	cancel()
	assert.NoError(t, <-done)
}

type scriptedSource struct {
	err     error
	signals []Signal
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Listen(ctx context.Context, offer func(Signal)) error {
	for _, sig := range s.signals {
		offer(sig)
	}
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return nil
}

func TestListener_RunsSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []string
	)
	ran := make(chan struct{}, 1)
	listener := NewListener(func(_ context.Context, sig Signal) error {
		mu.Lock()
		seen = append(seen, sig.Source)
		mu.Unlock()
		ran <- struct{}{}
		return nil
	}, &scriptedSource{signals: []Signal{{Source: "redis"}}})

	done := make(chan error)
	go func() { done <- listener.Run(ctx) }()

	<-ran
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"redis"}, seen)
}

func TestListener_SourceFailureStops(t *testing.T) {
	boom := errors.New("subscription lost")
	listener := NewListener(func(context.Context, Signal) error { return nil },
		&scriptedSource{err: boom})

	assert.ErrorIs(t, listener.Run(context.Background()), boom)
}
