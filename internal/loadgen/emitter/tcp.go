package emitter

import (
	"context"
	"net"
	"time"
)

// probe is written after each successful connect so the handshake carries a
// little application data, the way real connection load does.
var probe = []byte("GET / HTTP/1.0\r\n\r\n")

// TCPConnect exercises the target's connection handling: each Send performs a
// full TCP handshake, writes a small probe, and closes.
//
// There is no persistent state between sends, so the only fatal condition is
// local address resolution breaking; refused or timed-out connects are
// transient by definition.
type TCPConnect struct {
	addr    string
	dialer  net.Dialer
	timeout time.Duration
}

// NewTCPConnect creates a TCP connect emitter for the configured target.
func NewTCPConnect(cfg Config) (*TCPConnect, error) {
	return &TCPConnect{
		addr:    cfg.addr(),
		dialer:  net.Dialer{Timeout: cfg.timeout()},
		timeout: cfg.timeout(),
	}, nil
}

// Type returns TypeTCPConnect.
func (t *TCPConnect) Type() Type {
	return TypeTCPConnect
}

// Send opens one connection, writes the probe, and closes.
// The returned byte count covers the probe only, not handshake overhead.
func (t *TCPConnect) Send(ctx context.Context) (int, error) {
	conn, err := t.dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return 0, classify(err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(t.timeout))
	n, err := conn.Write(probe)
	if err != nil {
		// The connection itself succeeded; a failed probe write is still
		// connection load on the target.
		return n, transient(err)
	}

	return n, nil
}

// Close is a no-op; each Send owns its own connection.
func (t *TCPConnect) Close() error {
	return nil
}

var _ Emitter = (*TCPConnect)(nil)
