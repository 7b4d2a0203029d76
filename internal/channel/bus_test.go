package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SyncReply(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	b.Register(Background, func(_ context.Context, env Envelope, _ *Responder) Result {
		msg, ok := env.Msg.(ClassifyTweet)
		require.True(t, ok)
		assert.Equal(t, Scraper, env.From)
		cat := "Tech " + msg.Text
		return Reply(ClassifyResult{Category: &cat})
	})

	got, err := RequestAs[ClassifyResult](context.Background(), b, Scraper, Background, ClassifyTweet{Text: "go"})
	require.NoError(t, err)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Tech go", *got.Category)
}

func TestBus_PendingReply(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	b.Register(Background, func(_ context.Context, _ Envelope, r *Responder) Result {
		go func() {
			r.Respond(SyncResult{Success: true, Count: 3})
			r.Respond(SyncResult{Success: false})
		}()
		return Pending()
	})

	got, err := RequestAs[SyncResult](context.Background(), b, Scraper, Background, SyncBookmarks{})
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Success: true, Count: 3}, got, "only the first response counts")
}

func TestBus_UnregisteredTarget(t *testing.T) {
	b := NewBus()
	_, err := b.Request(context.Background(), Popup, Scraper, StartScraping{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContextInvalidated))

	err = b.Notify(context.Background(), Scraper, Popup, StatsUpdate{Count: 1})
	assert.True(t, errors.Is(err, ErrContextInvalidated))
}

func TestBus_CloseWhilePending(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	var held *Responder
	received := make(chan struct{})
	b.Register(Background, func(_ context.Context, _ Envelope, r *Responder) Result {
		held = r
		close(received)
		return Pending()
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Request(context.Background(), Popup, Background, ValidateAPIKey{APIKey: "k"})
		errCh <- err
	}()

	<-received
	b.Close(Background)
	assert.False(t, b.Alive(Background))

	err := <-errCh
	assert.True(t, errors.Is(err, ErrContextInvalidated))

	// Late response to a torn-down request is dropped without blocking.
	held.Respond(ValidateResult{Valid: true})
}

func TestBus_RequesterGone(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	release := make(chan struct{})
	received := make(chan struct{})
	done := make(chan struct{})
	b.Register(Background, func(_ context.Context, _ Envelope, r *Responder) Result {
		close(received)
		go func() {
			<-release
			r.Respond(Ack{OK: true})
			close(done)
		}()
		return Pending()
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := b.Request(ctx, Popup, Background, StopScraping{})
		errCh <- err
	}()
	// The popup closes mid-request.
	<-received
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("responder blocked after requester left")
	}
	assert.True(t, b.Alive(Background))
}

func TestBus_NotifyRunsHandlersInOrder(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	var mu sync.Mutex
	var counts []int
	var wg sync.WaitGroup
	wg.Add(3)
	b.Register(Popup, func(_ context.Context, env Envelope, r *Responder) Result {
		defer wg.Done()
		mu.Lock()
		counts = append(counts, env.Msg.(StatsUpdate).Count)
		mu.Unlock()
		r.Respond("ignored")
		return Reply(nil)
	})

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, b.Notify(ctx, Scraper, Popup, StatsUpdate{Count: i}))
	}
	wg.Wait()
	assert.Equal(t, []int{1, 2, 3}, counts)
}

func TestBus_ReregisterReplacesEndpoint(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	b.Register(Popup, func(context.Context, Envelope, *Responder) Result { return Reply("old") })
	b.Register(Popup, func(context.Context, Envelope, *Responder) Result { return Reply("new") })

	got, err := RequestAs[string](context.Background(), b, Scraper, Popup, ScanComplete{Total: 1})
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestBus_HandlerPanicDoesNotKillContext(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	b.Register(Background, func(_ context.Context, env Envelope, _ *Responder) Result {
		if _, ok := env.Msg.(StopScraping); ok {
			panic("boom")
		}
		return Reply(Ack{OK: true})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := b.Request(ctx, Popup, Background, StopScraping{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got, err := RequestAs[Ack](context.Background(), b, Popup, Background, StartScraping{})
	require.NoError(t, err)
	assert.True(t, got.OK)
}

func TestRequestAs_WrongType(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()
	b.Register(Background, func(context.Context, Envelope, *Responder) Result { return Reply(42) })

	_, err := RequestAs[SyncResult](context.Background(), b, Scraper, Background, SyncBookmarks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replied with int")
}
