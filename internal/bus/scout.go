package bus

import (
	"context"
	"fmt"
	"net"
	"time"
)

// scoutProbe is the datagram a peer broadcasts to find a router.
const scoutProbe = "zenoh-scout?"

// Scout broadcasts a probe on scoutAddr's port and waits for a router to
// answer with its TCP locator. Used when no locator is configured.
func Scout(ctx context.Context, scoutAddr string, timeout time.Duration) (string, error) {
	host, port, err := net.SplitHostPort(scoutAddr)
	if err != nil {
		return "", fmt.Errorf("%w: scout address %q: %v", ErrConnect, scoutAddr, err)
	}
	if host == "" {
		host = "255.255.255.255"
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return "", fmt.Errorf("%w: scout socket: %v", ErrConnect, err)
	}
	defer pc.Close()

	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, port))
	if err != nil {
		return "", fmt.Errorf("%w: scout target: %v", ErrConnect, err)
	}
	if _, err := pc.WriteTo([]byte(scoutProbe), dst); err != nil {
		return "", fmt.Errorf("%w: scout probe: %v", ErrConnect, err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := pc.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("%w: scout deadline: %v", ErrConnect, err)
	}

	buf := make([]byte, 256)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		return "", fmt.Errorf("%w: no router answered scout on %s: %v", ErrConnect, scoutAddr, err)
	}
	return string(buf[:n]), nil
}

// serveScout answers probe datagrams with the router's reachable locator.
func (r *Router) serveScout() {
	locator := r.Locator
	if host, port, err := net.SplitHostPort(locator); err != nil || host == "" || port == "0" {
		locator = r.ln.Addr().String()
	}
	buf := make([]byte, 64)
	for {
		n, addr, err := r.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		if string(buf[:n]) != scoutProbe {
			continue
		}
		if _, err := r.pc.WriteTo([]byte(locator), addr); err != nil {
			r.Log.Debug().Err(err).Msg("scout reply failed")
		}
	}
}
