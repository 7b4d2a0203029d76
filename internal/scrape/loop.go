// Package scrape drives the cooperative scroll-scrape-classify-sync loop
// over a feed snapshot.
package scrape

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/channel"
	"github.com/sells-group/bookmark-cli/internal/classify"
	"github.com/sells-group/bookmark-cli/internal/clock"
	"github.com/sells-group/bookmark-cli/internal/dedup"
	"github.com/sells-group/bookmark-cli/internal/extract"
	"github.com/sells-group/bookmark-cli/internal/feed"
	"github.com/sells-group/bookmark-cli/internal/gateway"
	"github.com/sells-group/bookmark-cli/internal/model"
	"github.com/sells-group/bookmark-cli/internal/resilience"
)

// ErrBusy is returned by ScrapeAll while another session is running.
var ErrBusy = eris.New("scrape: a session is already running")

// Syncer submits a batch to the backend.
type Syncer interface {
	Sync(ctx context.Context, batch []model.Record) (int, error)
}

// LocalMirror appends synced batches to local storage.
type LocalMirror interface {
	AppendBookmarks(ctx context.Context, records []model.Record) (int, error)
}

// RunLog records each session.
type RunLog interface {
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
}

// Notifier delivers progress messages to other contexts.
type Notifier interface {
	Notify(ctx context.Context, msg channel.Message) error
}

// Config tunes the loop.
type Config struct {
	MaxCycles      int
	StallThreshold int
	ScrollDelay    time.Duration
	SyncAttempts   int
	// Mode labels the run log entry, e.g. live or offline.
	Mode string
}

// DefaultConfig returns the stock limits: 200 cycles, 5 stalled cycles,
// 2s between scrolls, no sync retry.
func DefaultConfig() Config {
	return Config{
		MaxCycles:      200,
		StallThreshold: 5,
		ScrollDelay:    2 * time.Second,
		SyncAttempts:   1,
		Mode:           "live",
	}
}

// Option configures a Loop.
type Option func(*Loop)

// WithConfig replaces the loop limits. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(l *Loop) {
		def := DefaultConfig()
		if cfg.MaxCycles <= 0 {
			cfg.MaxCycles = def.MaxCycles
		}
		if cfg.StallThreshold <= 0 {
			cfg.StallThreshold = def.StallThreshold
		}
		if cfg.ScrollDelay < 0 {
			cfg.ScrollDelay = 0
		}
		if cfg.SyncAttempts <= 0 {
			cfg.SyncAttempts = def.SyncAttempts
		}
		if cfg.Mode == "" {
			cfg.Mode = def.Mode
		}
		l.cfg = cfg
	}
}

// WithClock injects the clock used for the scroll delay.
func WithClock(c clock.Clock) Option { return func(l *Loop) { l.clock = c } }

// WithSyncer enables backend sync of each batch.
func WithSyncer(s Syncer) Option { return func(l *Loop) { l.syncer = s } }

// WithLocalMirror enables appending each batch to local storage.
func WithLocalMirror(m LocalMirror) Option { return func(l *Loop) { l.local = m } }

// WithSeenMirror preloads the dedup cache at session start and records
// new ids after each batch.
func WithSeenMirror(m dedup.Mirror) Option { return func(l *Loop) { l.seen = m } }

// WithRunLog records sessions.
func WithRunLog(r RunLog) Option { return func(l *Loop) { l.runs = r } }

// WithNotifier sends StatsUpdate and ScanComplete messages.
func WithNotifier(n Notifier) Option { return func(l *Loop) { l.notify = n } }

// Loop is the scroll-scrape state machine. At most one session runs at a
// time.
type Loop struct {
	snap  feed.Snapshot
	ext   *extract.Extractor
	cls   classify.Classifier
	cfg   Config
	clock clock.Clock

	syncer Syncer
	local  LocalMirror
	seen   dedup.Mirror
	runs   RunLog
	notify Notifier

	mu      sync.Mutex
	state   State
	session *Session
	done    chan struct{}
}

// New creates a Loop over snap.
func New(snap feed.Snapshot, ext *extract.Extractor, cls classify.Classifier, opts ...Option) *Loop {
	l := &Loop{
		snap:  snap,
		ext:   ext,
		cls:   cls,
		cfg:   DefaultConfig(),
		clock: clock.Real{},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Session returns the current or most recent session, or nil.
func (l *Loop) Session() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// Start begins a session in the background. Calling Start while a session
// is running returns that session. ctx bounds the whole session.
func (l *Loop) Start(ctx context.Context) (*Session, error) {
	sess, started := l.begin()
	if !started {
		return sess, nil
	}

	run := l.prepare(ctx, sess)
	go l.run(ctx, sess, run)
	return sess, nil
}

// Run is the synchronous form of Start.
func (l *Loop) Run(ctx context.Context) (Stats, error) {
	sess, err := l.Start(ctx)
	if err != nil {
		return Stats{}, err
	}
	l.Wait()
	st := sess.Stats()
	return st, st.Err
}

// Stop asks the running session to end after its current cycle.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Running {
		l.state = Stopping
	}
}

// Wait blocks until no session is running.
func (l *Loop) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		<-done
	}
}

// ScrapeAll runs one session synchronously without syncing and returns
// every identified, bookmarked record it saw.
func (l *Loop) ScrapeAll(ctx context.Context) ([]model.Record, error) {
	sess, started := l.begin()
	if !started {
		return nil, ErrBusy
	}
	run := l.prepare(ctx, sess)

	var all []model.Record
	reason, err := l.cycle(ctx, sess, func(_ context.Context, batch []model.Record) {
		all = append(all, batch...)
	})
	l.end(ctx, sess, run, reason, err)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, r := range all {
		if r.IsBookmarked {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *Loop) begin() (*Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Idle {
		return l.session, false
	}
	l.state = Running
	l.session = newSession(l.clock.Now())
	l.done = make(chan struct{})
	return l.session, true
}

func (l *Loop) stopping() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == Stopping
}

// prepare preloads the dedup cache and opens the run log entry. Failures
// here are logged; the session still runs.
func (l *Loop) prepare(ctx context.Context, sess *Session) *model.Run {
	log := zap.L().With(zap.String("session", sess.ID))

	if l.seen != nil {
		ids, err := l.seen.Load(ctx)
		if err != nil {
			log.Warn("scrape: dedup preload failed", zap.Error(err))
		}
		sess.Seen.Preload(ids)
		log.Debug("scrape: dedup cache preloaded", zap.Int("ids", sess.Seen.Len()))
	}

	if l.runs == nil {
		return nil
	}
	run := &model.Run{ID: sess.ID, Mode: l.cfg.Mode, StartedAt: sess.Stats().StartedAt.UTC()}
	if err := l.runs.CreateRun(ctx, run); err != nil {
		log.Warn("scrape: create run log entry failed", zap.Error(err))
		return nil
	}
	return run
}

func (l *Loop) run(ctx context.Context, sess *Session, run *model.Run) {
	reason, err := l.cycle(ctx, sess, func(ctx context.Context, batch []model.Record) {
		l.flush(ctx, sess, batch)
	})
	l.end(ctx, sess, run, reason, err)
}

func (l *Loop) end(ctx context.Context, sess *Session, run *model.Run, reason Reason, err error) {
	st := sess.finish(l.clock.Now(), reason, err)

	log := zap.L().With(zap.String("session", sess.ID))
	fields := []zap.Field{
		zap.String("reason", string(reason)),
		zap.Int("cycles", st.Cycles),
		zap.Int("found", st.Found),
		zap.Int("synced", st.Synced),
		zap.Int("skipped", st.Skipped),
		zap.Int("sync_failures", st.SyncFailures),
	}
	if err != nil {
		log.Error("scrape: session failed", append(fields, zap.Error(err))...)
	} else {
		log.Info("scrape: session finished", fields...)
	}

	bg := context.WithoutCancel(ctx)
	if l.runs != nil && run != nil {
		run.Status = model.RunStatusComplete
		if err != nil {
			run.Status = model.RunStatusFailed
			run.Error = err.Error()
		}
		run.Reason = string(reason)
		run.Cycles = st.Cycles
		run.Found = st.Found
		run.Synced = st.Synced
		run.Skipped = st.Skipped
		run.SyncFailures = st.SyncFailures
		run.FinishedAt = st.FinishedAt.UTC()
		if ferr := l.runs.FinishRun(bg, run); ferr != nil {
			log.Warn("scrape: finish run log entry failed", zap.Error(ferr))
		}
	}
	l.send(bg, channel.ScanComplete{Total: st.Found, Reason: string(reason)})

	l.mu.Lock()
	l.state = Idle
	close(l.done)
	l.mu.Unlock()
}

// cycle runs scrape-scroll cycles until a termination condition and hands
// each non-empty batch to emit.
func (l *Loop) cycle(ctx context.Context, sess *Session, emit func(context.Context, []model.Record)) (Reason, error) {
	prev, err := l.snap.Extent(ctx)
	if err != nil {
		return endReason(ctx, eris.Wrap(err, "scrape: read initial extent"))
	}

	stalls := 0
	for cycles := 0; ; cycles++ {
		if ctx.Err() != nil {
			return ReasonCanceled, nil
		}
		if l.stopping() {
			return ReasonStopped, nil
		}
		if cycles >= l.cfg.MaxCycles {
			return ReasonMaxCycles, nil
		}
		sess.update(func(st *Stats) { st.Cycles++ })

		batch, err := l.collect(ctx, sess)
		if err != nil {
			return endReason(ctx, err)
		}
		if len(batch) > 0 {
			emit(ctx, batch)
		}

		if err := l.snap.ScrollToBottom(ctx); err != nil {
			return endReason(ctx, eris.Wrap(err, "scrape: scroll"))
		}
		if err := l.clock.Sleep(ctx, l.cfg.ScrollDelay); err != nil {
			return ReasonCanceled, nil
		}

		cur, err := l.snap.Extent(ctx)
		if err != nil {
			return endReason(ctx, eris.Wrap(err, "scrape: read extent"))
		}
		if cur == prev {
			stalls++
		} else {
			stalls = 0
		}
		prev = cur
		sess.update(func(st *Stats) { st.Stalls = stalls })

		if stalls >= l.cfg.StallThreshold {
			return ReasonFeedEnd, nil
		}
	}
}

func endReason(ctx context.Context, err error) (Reason, error) {
	if ctx.Err() != nil {
		return ReasonCanceled, nil
	}
	return ReasonError, err
}

// collect marks, extracts and classifies every unseen item currently
// rendered. Seen items are recognized by permalink alone and never
// expanded again. Per-item failures never abort the batch.
func (l *Loop) collect(ctx context.Context, sess *Session) ([]model.Record, error) {
	nodes, err := l.snap.Items(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: enumerate items")
	}

	var batch []model.Record
	skipped := 0
	for _, node := range nodes {
		id := l.ext.ID(node)
		if id == "" {
			zap.L().Debug("scrape: skipping unidentified item")
			skipped++
			continue
		}
		if sess.Seen.HasSeen(id) {
			continue
		}
		sess.Seen.MarkSeen(id)

		rec, err := l.ext.Extract(ctx, node)
		if err != nil {
			if errors.Is(err, extract.ErrNotExtractable) {
				skipped++
				continue
			}
			return nil, err
		}

		rec.Category = classify.OrDefault(ctx, l.cls, rec.Text, model.CategoryUncategorized)
		batch = append(batch, *rec)
	}

	sess.update(func(st *Stats) {
		st.Found += len(batch)
		st.Skipped += skipped
	})
	return batch, nil
}

// flush syncs, mirrors and reports one batch. A sync failure is reported
// once and the loop carries on; the unsynced batch is kept out of the
// mirrors so a later session picks it up again.
func (l *Loop) flush(ctx context.Context, sess *Session, batch []model.Record) {
	log := zap.L().With(zap.String("session", sess.ID), zap.Int("batch", len(batch)))
	defer l.send(ctx, channel.StatsUpdate{Count: len(batch)})

	if l.syncer != nil {
		n, err := resilience.DoVal(ctx, resilience.RetryConfig{
			MaxAttempts: l.cfg.SyncAttempts,
			ShouldRetry: gateway.IsNetwork,
			OnRetry:     resilience.RetryLogger("backend", "sync"),
			Clock:       l.clock,
		}, func(ctx context.Context) (int, error) {
			return l.syncer.Sync(ctx, batch)
		})
		if err != nil {
			sess.update(func(st *Stats) { st.SyncFailures++ })
			log.Warn("scrape: batch sync failed", zap.Error(err))
			return
		}
		sess.update(func(st *Stats) { st.Synced += n })
	}

	if l.local != nil {
		if _, err := l.local.AppendBookmarks(ctx, batch); err != nil {
			log.Warn("scrape: local mirror append failed", zap.Error(err))
		}
	}
	if l.seen != nil {
		ids := make([]string, len(batch))
		for i, r := range batch {
			ids[i] = r.ID
		}
		if err := l.seen.Add(ctx, ids); err != nil {
			log.Warn("scrape: dedup mirror add failed", zap.Error(err))
		}
	}
}

func (l *Loop) send(ctx context.Context, msg channel.Message) {
	if l.notify == nil {
		return
	}
	if err := l.notify.Notify(ctx, msg); err != nil {
		zap.L().Debug("scrape: progress notification dropped",
			zap.String("action", msg.Action()), zap.Error(err))
	}
}
