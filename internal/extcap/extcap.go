// Package extcap implements the textual handshake Wireshark performs with an
// extcap plugin: interface listing, DLT listing and the per-interface
// configuration arguments. Sentences follow the extcap grammar of
// space-separated {key=value} groups, one sentence per line.
package extcap

import (
	"errors"
	"fmt"
	"strings"
)

// InterfaceName is the single synthetic interface this plugin exposes.
const InterfaceName = "zenoh"

// LinkTypeUser0 is the pseudo link-layer type announced for captured frames.
// Payloads are opaque Zenoh samples, so one of the user-reserved DLT values
// is used instead of a real link type.
const LinkTypeUser0 = 147

// HelpURL is advertised in the extcap version sentence.
const HelpURL = "https://github.com/InfraSecConsult/zenoh-extcap-go"

// ErrUnknownInterface is returned when a DLT or config query names an
// interface this plugin does not provide.
var ErrUnknownInterface = errors.New("unknown extcap interface")

type attr struct {
	key   string
	value string
}

// sentence renders one extcap line, e.g.
// interface {value=zenoh}{display=Listen on Zenoh P2P channel}
func sentence(kind string, attrs ...attr) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte(' ')
	for _, a := range attrs {
		fmt.Fprintf(&b, "{%s=%s}", a.key, a.value)
	}
	return b.String()
}

// Interfaces returns the interface listing sentences. The listing is fixed:
// one extcap version line followed by the single zenoh interface.
func Interfaces(version string) []string {
	return []string{
		sentence("extcap",
			attr{"version", version},
			attr{"help", HelpURL},
			attr{"display", "Zenoh capture bridge"},
		),
		sentence("interface",
			attr{"value", InterfaceName},
			attr{"display", "Listen on Zenoh P2P channel"},
		),
	}
}

// DLTs returns the DLT sentences for iface.
func DLTs(iface string) ([]string, error) {
	if iface != InterfaceName {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterface, iface)
	}
	return []string{
		sentence("dlt",
			attr{"number", fmt.Sprintf("%d", LinkTypeUser0)},
			attr{"name", "USER0"},
			attr{"display", "Raw Zenoh payload"},
		),
	}, nil
}

// ConfigArgs returns the configuration argument sentences for iface.
// defaultLocator surfaces the config-file locator so Wireshark shows the
// effective default; it may be empty (scouting).
func ConfigArgs(iface, defaultLocator string) ([]string, error) {
	if iface != InterfaceName {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterface, iface)
	}
	return []string{
		sentence("arg",
			attr{"number", "0"},
			attr{"call", "--channels"},
			attr{"display", "Channels"},
			attr{"tooltip", "Comma-separated Zenoh channels to subscribe to"},
			attr{"type", "string"},
			attr{"default", "*"},
		),
		sentence("arg",
			attr{"number", "1"},
			attr{"call", "--locator"},
			attr{"display", "Locator"},
			attr{"tooltip", "Router locator (host:port); empty enables scouting"},
			attr{"type", "string"},
			attr{"default", defaultLocator},
		),
	}, nil
}
