package bus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Router accepts peer connections and fans every published frame out to all
// subscriptions whose pattern matches the frame's channel. Fan-out happens
// synchronously on the publisher's read goroutine, so per-publisher order is
// preserved end to end.
type Router struct {
	Locator   string // TCP listen address
	ScoutAddr string // UDP scout listen address; empty disables scouting
	Log       zerolog.Logger

	ln net.Listener
	pc net.PacketConn

	mu   sync.RWMutex
	subs map[string]*routerSub
}

type routerSub struct {
	id      string
	pattern string
	conn    net.Conn

	mu  sync.Mutex
	enc *json.Encoder
}

// NewRouter returns an unstarted router.
func NewRouter(locator, scoutAddr string, log zerolog.Logger) *Router {
	return &Router{
		Locator:   locator,
		ScoutAddr: scoutAddr,
		Log:       log,
		subs:      make(map[string]*routerSub),
	}
}

// Listen binds the TCP locator and, when configured, the UDP scout socket.
func (r *Router) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", r.Locator)
	if err != nil {
		return err
	}
	r.ln = ln
	if r.ScoutAddr != "" {
		pc, err := lc.ListenPacket(ctx, "udp4", r.ScoutAddr)
		if err != nil {
			ln.Close()
			return err
		}
		r.pc = pc
	}
	r.Log.Info().Stringer("locator", ln.Addr()).Str("scout", r.ScoutAddr).Msg("router listening")
	return nil
}

// Addr returns the bound TCP address. Only valid after Listen.
func (r *Router) Addr() net.Addr {
	return r.ln.Addr()
}

// Serve accepts connections until ctx is cancelled.
func (r *Router) Serve(ctx context.Context) error {
	if r.pc != nil {
		go r.serveScout()
	}
	go func() {
		<-ctx.Done()
		r.ln.Close()
		if r.pc != nil {
			r.pc.Close()
		}
	}()
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go r.handle(conn)
	}
}

// Run is Listen followed by Serve.
func (r *Router) Run(ctx context.Context) error {
	if err := r.Listen(ctx); err != nil {
		return err
	}
	return r.Serve(ctx)
}

func (r *Router) handle(conn net.Conn) {
	defer conn.Close()
	var subID string
	defer func() {
		if subID != "" {
			r.unsubscribe(subID)
		}
	}()

	dec := json.NewDecoder(conn)
	for {
		var f wireFrame
		if err := dec.Decode(&f); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				r.Log.Debug().Err(err).Msg("peer connection ended")
			}
			return
		}
		switch f.Op {
		case opSub:
			if subID != "" {
				// A connection registers at most one subscription.
				continue
			}
			id := f.ID
			if id == "" {
				id = uuid.NewString()
			}
			subID = id
			r.subscribe(&routerSub{
				id:      id,
				pattern: f.Channel,
				conn:    conn,
				enc:     json.NewEncoder(conn),
			})
		case opPub:
			r.fanOut(f)
		}
	}
}

func (r *Router) subscribe(sub *routerSub) {
	r.mu.Lock()
	r.subs[sub.id] = sub
	r.mu.Unlock()
	r.Log.Debug().Str("id", sub.id).Str("pattern", sub.pattern).Msg("subscription registered")
}

func (r *Router) unsubscribe(id string) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

func (r *Router) fanOut(f wireFrame) {
	r.mu.RLock()
	targets := make([]*routerSub, 0, len(r.subs))
	for _, sub := range r.subs {
		if MatchChannel(sub.pattern, f.Channel) {
			targets = append(targets, sub)
		}
	}
	r.mu.RUnlock()

	for _, sub := range targets {
		sub.mu.Lock()
		err := sub.enc.Encode(f)
		sub.mu.Unlock()
		if err != nil {
			r.Log.Debug().Err(err).Str("id", sub.id).Msg("dropping dead subscription")
			sub.conn.Close()
			r.unsubscribe(sub.id)
		}
	}
}
