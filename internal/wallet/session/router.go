package session

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github/chapool/cross-dapp/internal/metrics"
	"github/chapool/cross-dapp/internal/wallet"
)

// ErrRouterStarted is returned when Run is called a second time.
var ErrRouterStarted = errors.New("lifecycle router already started")

// ChainResolver maps chain identifiers reported by the wallet onto supported chains.
type ChainResolver interface {
	Resolve(raw string) (wallet.ChainID, bool)
}

// Router subscribes once to the wallet layer's notification stream,
// applies every notification to the State in delivery order and fans the
// result out to registered observers.
type Router struct {
	state    *State
	resolver ChainResolver
	metrics  *metrics.Metrics

	mu        sync.Mutex
	observers map[uint64]Observer
	nextID    uint64

	started atomic.Bool
}

// NewRouter creates a router writing to state. m may be nil.
func NewRouter(state *State, resolver ChainResolver, m *metrics.Metrics) *Router {
	return &Router{
		state:     state,
		resolver:  resolver,
		metrics:   m,
		observers: make(map[uint64]Observer),
	}
}

// State returns the state this router writes to.
func (r *Router) State() *State {
	return r.state
}

// Register adds an observer and returns a function removing it.
func (r *Router) Register(o Observer) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.observers[id] = o

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.observers, id)
	}
}

// Run waits until src is ready, then consumes its notifications until ctx
// is cancelled or the stream is closed. It may only be called once.
func (r *Router) Run(ctx context.Context, src Source) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrRouterStarted
	}

	log := log.With().Str("component", "lifecycle_router").Logger()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-src.Ready():
	}

	log.Debug().Msg("Wallet layer ready, consuming lifecycle notifications")

	notifications := src.Notifications()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				log.Info().Msg("Lifecycle notification stream closed")
				return nil
			}
			r.handle(n)
		}
	}
}

func (r *Router) handle(n Notification) {
	event := r.resolve(n)
	snapshot, changed := r.state.apply(event)

	r.metrics.ObserveLifecycleEvent(n.Type.String(), changed, snapshot.Connected())

	l := log.Debug().
		Str("component", "lifecycle_router").
		Str("type", n.Type.String()).
		Str("status", snapshot.Status().String()).
		Bool("changed", changed)
	if event.ChainReported && event.Chain == nil {
		l = l.Str("reported_chain", n.ChainID).Bool("unsupported_chain", true)
	}
	l.Msg("Applied lifecycle notification")

	// degraded chain state is always reported so dependents can surface it
	unsupported := n.Type == NotificationChainChanged && event.Chain == nil
	if !changed && !unsupported {
		return
	}

	for _, o := range r.snapshotObservers() {
		o(snapshot, event)
	}
}

func (r *Router) resolve(n Notification) Event {
	event := Event{Type: n.Type, Account: n.Account}

	switch n.Type {
	case NotificationChainChanged:
		event.ChainReported = true
	case NotificationAccountConnected, NotificationAccountChanged:
		event.ChainReported = n.ChainID != ""
	case NotificationAccountDisconnected, NotificationConnecting:
		return event
	}

	if event.ChainReported && r.resolver != nil {
		if id, ok := r.resolver.Resolve(n.ChainID); ok {
			event.Chain = &id
		}
	}

	return event
}

func (r *Router) snapshotObservers() []Observer {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uint64, 0, len(r.observers))
	for id := range r.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, r.observers[id])
	}

	return observers
}

// ChannelSource is a Source backed by a buffered channel. Wallet adapters
// embed it and call Emit; MarkReady signals that the wallet object exists.
type ChannelSource struct {
	ready     chan struct{}
	readyOnce sync.Once
	ch        chan Notification
}

// NewChannelSource creates a source buffering up to size notifications.
func NewChannelSource(size int) *ChannelSource {
	return &ChannelSource{
		ready: make(chan struct{}),
		ch:    make(chan Notification, size),
	}
}

func (s *ChannelSource) Ready() <-chan struct{} {
	return s.ready
}

func (s *ChannelSource) Notifications() <-chan Notification {
	return s.ch
}

// MarkReady closes the ready channel. Calling it more than once is harmless.
func (s *ChannelSource) MarkReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Emit delivers n, blocking while the buffer is full or until ctx is done.
func (s *ChannelSource) Emit(ctx context.Context, n Notification) error {
	select {
	case s.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream.
func (s *ChannelSource) Close() {
	close(s.ch)
}
