package scrape

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/channel"
)

// Handler answers StartScraping and StopScraping for the scraper context.
// Sessions started through it live as long as base.
func (l *Loop) Handler(base context.Context) channel.Handler {
	return func(_ context.Context, env channel.Envelope, _ *channel.Responder) channel.Result {
		switch env.Msg.(type) {
		case channel.StartScraping:
			sess, err := l.Start(base)
			if err != nil {
				return channel.Reply(channel.StartResult{Error: err.Error()})
			}
			return channel.Reply(channel.StartResult{Started: true, SessionID: sess.ID})
		case channel.StopScraping:
			l.Stop()
			return channel.Reply(channel.Ack{OK: true})
		default:
			zap.L().Debug("scrape: ignoring message", zap.String("action", env.Msg.Action()))
			return channel.Reply(channel.Ack{OK: false})
		}
	}
}

// BusNotifier fans progress messages out from the scraper context to
// targets. Targets that are not open are skipped.
type BusNotifier struct {
	Bus     *channel.Bus
	Targets []channel.Context
}

// Notify sends msg to every live target.
func (n BusNotifier) Notify(ctx context.Context, msg channel.Message) error {
	for _, to := range n.Targets {
		if !n.Bus.Alive(to) {
			continue
		}
		if err := n.Bus.Notify(ctx, channel.Scraper, to, msg); err != nil {
			zap.L().Warn("scrape: notify failed",
				zap.String("to", string(to)), zap.String("action", msg.Action()), zap.Error(err))
		}
	}
	return nil
}
