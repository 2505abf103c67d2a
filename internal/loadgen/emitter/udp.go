package emitter

import (
	"context"
	"fmt"
	"net"
	"time"
)

// UDP writes fixed-size datagrams over a single connected socket.
//
// The socket is connected once at construction; each Send is one write.
// Datagram delivery is best-effort by nature, so a successful write counts as
// a sent packet even if the network later drops it.
type UDP struct {
	conn    net.Conn
	payload []byte
	timeout time.Duration
}

// NewUDP creates a UDP emitter connected to the configured target.
func NewUDP(cfg Config) (*UDP, error) {
	size := cfg.PayloadSize
	if size <= 0 {
		size = 1024
	}

	conn, err := net.DialTimeout("udp", cfg.addr(), cfg.timeout())
	if err != nil {
		return nil, fmt.Errorf("udp emitter: %w", err)
	}

	return &UDP{
		conn:    conn,
		payload: makePayload(size),
		timeout: cfg.timeout(),
	}, nil
}

// Type returns TypeUDP.
func (u *UDP) Type() Type {
	return TypeUDP
}

// Send writes one datagram and returns its size.
func (u *UDP) Send(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, transient(err)
	}

	u.conn.SetWriteDeadline(time.Now().Add(u.timeout))
	n, err := u.conn.Write(u.payload)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// Close releases the socket. Sends after Close fail fatally.
func (u *UDP) Close() error {
	return u.conn.Close()
}

// makePayload builds a deterministic payload of the given size.
func makePayload(size int) []byte {
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = 'A'
	}
	return payload
}

var _ Emitter = (*UDP)(nil)
