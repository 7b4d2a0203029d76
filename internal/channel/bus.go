// Package channel connects the scraper, background, popup and web page
// contexts with typed request/response and notification messages.
package channel

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Context names one logical execution context.
type Context string

const (
	Scraper    Context = "scraper"
	Background Context = "background"
	Popup      Context = "popup"
	WebPage    Context = "webpage"
)

// ErrContextInvalidated is returned when the target context is not
// registered or was torn down while the request was outstanding.
var ErrContextInvalidated = eris.New("channel: extension context invalidated")

// Envelope is one delivered message.
type Envelope struct {
	From Context
	Msg  Message
}

// Result is what a handler returns: an immediate reply, or Pending when
// the handler will call Responder.Respond later.
type Result struct {
	value   any
	pending bool
}

// Reply answers synchronously with v.
func Reply(v any) Result { return Result{value: v} }

// Pending signals that the response will be delivered later.
func Pending() Result { return Result{pending: true} }

// Handler processes messages for one context. Handlers for a context run
// one at a time in arrival order.
type Handler func(ctx context.Context, env Envelope, r *Responder) Result

// Responder delivers the response of one request. Only the first Respond
// counts; responses nobody waits for any more are dropped.
type Responder struct {
	once sync.Once
	ch   chan any
}

// Respond delivers v.
func (r *Responder) Respond(v any) {
	if r == nil || r.ch == nil {
		return
	}
	r.once.Do(func() {
		r.ch <- v
	})
}

type delivery struct {
	ctx  context.Context
	env  Envelope
	resp *Responder
}

type endpoint struct {
	name    Context
	handler Handler
	inbox   chan delivery
	done    chan struct{}
	stopped chan struct{}
}

// Bus routes messages between registered contexts.
type Bus struct {
	mu        sync.RWMutex
	endpoints map[Context]*endpoint
	inboxSize int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{endpoints: make(map[Context]*endpoint), inboxSize: 16}
}

// Register attaches h as the handler for c. Registering a context that is
// already attached tears the old endpoint down first, like a popup being
// reopened.
func (b *Bus) Register(c Context, h Handler) {
	ep := &endpoint{
		name:    c,
		handler: h,
		inbox:   make(chan delivery, b.inboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	b.mu.Lock()
	old := b.endpoints[c]
	b.endpoints[c] = ep
	b.mu.Unlock()

	if old != nil {
		close(old.done)
	}
	go ep.run()
}

func (ep *endpoint) run() {
	defer close(ep.stopped)
	for {
		select {
		case <-ep.done:
			return
		case d := <-ep.inbox:
			ep.dispatch(d)
		}
	}
}

func (ep *endpoint) dispatch(d delivery) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("channel: handler panicked",
				zap.String("context", string(ep.name)),
				zap.String("action", d.env.Msg.Action()),
				zap.Any("panic", p),
			)
		}
	}()
	res := ep.handler(d.ctx, d.env, d.resp)
	if !res.pending {
		d.resp.Respond(res.value)
	}
}

// Alive reports whether c is registered.
func (b *Bus) Alive(c Context) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.endpoints[c]
	return ok
}

// Close tears c down. Outstanding requests to it fail with
// ErrContextInvalidated; a handler already running finishes first.
func (b *Bus) Close(c Context) {
	b.mu.Lock()
	ep := b.endpoints[c]
	delete(b.endpoints, c)
	b.mu.Unlock()

	if ep != nil {
		close(ep.done)
		<-ep.stopped
	}
}

// Shutdown closes every context.
func (b *Bus) Shutdown() {
	b.mu.RLock()
	names := make([]Context, 0, len(b.endpoints))
	for name := range b.endpoints {
		names = append(names, name)
	}
	b.mu.RUnlock()

	for _, name := range names {
		b.Close(name)
	}
}

func (b *Bus) lookup(c Context) (*endpoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ep, ok := b.endpoints[c]
	if !ok {
		return nil, eris.Wrapf(ErrContextInvalidated, "context %s", c)
	}
	return ep, nil
}

func (ep *endpoint) enqueue(ctx context.Context, d delivery) error {
	select {
	case ep.inbox <- d:
		return nil
	case <-ep.done:
		return eris.Wrapf(ErrContextInvalidated, "context %s", ep.name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Request sends msg from one context to another and waits for the reply.
func (b *Bus) Request(ctx context.Context, from, to Context, msg Message) (any, error) {
	ep, err := b.lookup(to)
	if err != nil {
		return nil, err
	}

	resp := &Responder{ch: make(chan any, 1)}
	if err := ep.enqueue(ctx, delivery{ctx: ctx, env: Envelope{From: from, Msg: msg}, resp: resp}); err != nil {
		return nil, err
	}

	select {
	case v := <-resp.ch:
		return v, nil
	case <-ep.done:
		// A reply may have raced the teardown.
		select {
		case v := <-resp.ch:
			return v, nil
		default:
		}
		return nil, eris.Wrapf(ErrContextInvalidated, "context %s closed before replying to %s", to, msg.Action())
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends msg without waiting for a reply.
func (b *Bus) Notify(ctx context.Context, from, to Context, msg Message) error {
	ep, err := b.lookup(to)
	if err != nil {
		return err
	}
	return ep.enqueue(ctx, delivery{ctx: context.WithoutCancel(ctx), env: Envelope{From: from, Msg: msg}})
}

// RequestAs is Request with the reply asserted to T.
func RequestAs[T any](ctx context.Context, b *Bus, from, to Context, msg Message) (T, error) {
	var zero T
	v, err := b.Request(ctx, from, to, msg)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, eris.Errorf("channel: %s replied with %T", msg.Action(), v)
	}
	return out, nil
}
