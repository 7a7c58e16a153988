// Package bus implements the small peer protocol the capture adapter speaks:
// JSON-framed publish/subscribe over TCP with UDP broadcast scouting. The
// adapter itself only depends on the Subscriber interface, so the transport
// can be swapped out in tests.
package bus

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultLocator is the conventional router endpoint.
const DefaultLocator = "127.0.0.1:7447"

// DefaultScoutAddr is the UDP port scout probes are broadcast to.
const DefaultScoutAddr = ":7446"

var (
	// ErrConnect reports an unreachable bus.
	ErrConnect = errors.New("bus unreachable")
	// ErrSubscribe reports an invalid channel or a failed subscription.
	ErrSubscribe = errors.New("subscription failed")
)

// Sample is one message received from a channel.
type Sample struct {
	Channel    string
	Payload    []byte
	ReceivedAt time.Time
}

// Subscriber delivers samples from named channels. The returned channel is
// closed when the subscription ends; samples arrive in network order.
type Subscriber interface {
	Subscribe(channel string) (<-chan Sample, error)
}

// ValidateChannel rejects channel names the wire protocol cannot carry.
func ValidateChannel(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty channel name", ErrSubscribe)
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("%w: channel name %q contains whitespace", ErrSubscribe, name)
	}
	return nil
}

// MatchChannel reports whether a published channel name matches a
// subscription pattern. "*" matches everything, "prefix/*" matches the
// subtree below prefix, anything else is an exact match.
func MatchChannel(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(name, prefix+"/")
	}
	return pattern == name
}
