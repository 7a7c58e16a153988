package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session is a client connection to a router. One dedicated TCP connection
// per subscription keeps delivery order per channel trivially intact; a
// shared connection carries publishes.
type Session struct {
	locator string
	log     zerolog.Logger

	mu      sync.Mutex
	pubConn net.Conn
	pubEnc  *json.Encoder
	subs    []net.Conn
	closed  bool
}

// Dial connects to the router at locator. The connection is established
// eagerly so an unreachable bus fails here, before any capture output is
// produced.
func Dial(ctx context.Context, locator string, log zerolog.Logger) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", locator)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnect, locator, err)
	}
	log.Debug().Str("locator", locator).Msg("bus session established")
	return &Session{
		locator: locator,
		log:     log,
		pubConn: conn,
		pubEnc:  json.NewEncoder(conn),
	}, nil
}

// Subscribe opens a subscription for a channel pattern. Samples are delivered
// in the order the router sends them; the returned channel is closed when the
// router drops the connection or the session is closed.
func (s *Session) Subscribe(channel string) (<-chan Sample, error) {
	if err := ValidateChannel(channel); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session closed", ErrSubscribe)
	}
	s.mu.Unlock()

	var d net.Dialer
	conn, err := d.Dial("tcp", s.locator)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnect, s.locator, err)
	}

	id := uuid.NewString()
	if err := json.NewEncoder(conn).Encode(wireFrame{Op: opSub, ID: id, Channel: channel}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: register %q: %v", ErrSubscribe, channel, err)
	}

	s.mu.Lock()
	s.subs = append(s.subs, conn)
	s.mu.Unlock()

	out := make(chan Sample, 64)
	go s.receive(conn, channel, out)
	return out, nil
}

func (s *Session) receive(conn net.Conn, channel string, out chan<- Sample) {
	defer close(out)
	dec := json.NewDecoder(conn)
	for {
		var f wireFrame
		if err := dec.Decode(&f); err != nil {
			s.log.Debug().Err(err).Str("channel", channel).Msg("subscription stream ended")
			return
		}
		if f.Op != opPub {
			continue
		}
		out <- Sample{
			Channel:    f.Channel,
			Payload:    f.Payload,
			ReceivedAt: time.Now(),
		}
	}
}

// Publish sends one message on a channel.
func (s *Session) Publish(channel string, payload []byte) error {
	if err := ValidateChannel(channel); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: session closed", ErrConnect)
	}
	err := s.pubEnc.Encode(wireFrame{
		Op:      opPub,
		Channel: channel,
		Payload: payload,
		SentAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("%w: publish on %q: %v", ErrConnect, channel, err)
	}
	return nil
}

// Close tears down the publish connection and every subscription. Pending
// sample channels are closed as their readers observe the closed conns.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.pubConn.Close()
	for _, c := range s.subs {
		c.Close()
	}
	return err
}
