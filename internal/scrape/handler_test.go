package scrape

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bookmark-cli/internal/channel"
)

func TestHandler_StartStopOverBus(t *testing.T) {
	f := endless()
	l, clk := newLoop(f)
	release := make(chan struct{})
	var once sync.Once
	clk.OnSleep = func(time.Duration) { once.Do(func() { <-release }) }

	bus := channel.NewBus()
	defer bus.Shutdown()
	bus.Register(channel.Scraper, l.Handler(context.Background()))

	ctx := context.Background()
	res, err := channel.RequestAs[channel.StartResult](ctx, bus, channel.Popup, channel.Scraper, channel.StartScraping{})
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, l.Session().ID, res.SessionID)

	again, err := channel.RequestAs[channel.StartResult](ctx, bus, channel.Popup, channel.Scraper, channel.StartScraping{})
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, again.SessionID, "start while running is a no-op")

	ack, err := channel.RequestAs[channel.Ack](ctx, bus, channel.Popup, channel.Scraper, channel.StopScraping{})
	require.NoError(t, err)
	assert.True(t, ack.OK)

	close(release)
	l.Wait()
	assert.Equal(t, ReasonStopped, l.Session().Stats().Reason)
}

func TestHandler_IgnoresOtherMessages(t *testing.T) {
	l, _ := newLoop(endless())
	h := l.Handler(context.Background())
	res := h(context.Background(), channel.Envelope{From: channel.Popup, Msg: channel.Refetch{}}, nil)

	bus := channel.NewBus()
	defer bus.Shutdown()
	bus.Register(channel.Scraper, func(ctx context.Context, env channel.Envelope, r *channel.Responder) channel.Result {
		return res
	})
	ack, err := channel.RequestAs[channel.Ack](context.Background(), bus, channel.Popup, channel.Scraper, channel.Refetch{})
	require.NoError(t, err)
	assert.False(t, ack.OK)
	assert.Equal(t, Idle, l.State())
}

func TestBusNotifier_SkipsClosedTargets(t *testing.T) {
	bus := channel.NewBus()
	defer bus.Shutdown()

	got := make(chan channel.Message, 1)
	bus.Register(channel.Popup, func(_ context.Context, env channel.Envelope, _ *channel.Responder) channel.Result {
		assert.Equal(t, channel.Scraper, env.From)
		got <- env.Msg
		return channel.Reply(nil)
	})

	n := BusNotifier{Bus: bus, Targets: []channel.Context{channel.Popup, channel.WebPage}}
	require.NoError(t, n.Notify(context.Background(), channel.StatsUpdate{Count: 4}))
	assert.Equal(t, channel.StatsUpdate{Count: 4}, <-got)
}
