package emitter

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// icmpHeaderLen is the ICMP echo header size; the configured payload size is
// the on-wire message size including this header.
const icmpHeaderLen = 8

// Ping sends ICMP echo requests to the target.
//
// It prefers an unprivileged datagram ICMP socket (udp4), which works without
// root on Linux when ping_group_range allows it, and falls back to a raw
// ip4:icmp socket. Replies are not awaited: the harness measures emission,
// not round trips.
type Ping struct {
	conn    *icmp.PacketConn
	dst     net.Addr
	payload []byte
	id      int
	seq     int
	timeout time.Duration
}

// NewPing creates a ping emitter for the configured target host.
func NewPing(cfg Config) (*Ping, error) {
	ip, err := resolveIPv4(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("ping emitter: %w", err)
	}

	conn, dst, err := openICMP(ip)
	if err != nil {
		return nil, fmt.Errorf("ping emitter: %w", err)
	}

	size := cfg.PayloadSize - icmpHeaderLen
	if size < 0 {
		size = 0
	}

	return &Ping{
		conn:    conn,
		dst:     dst,
		payload: makePayload(size),
		id:      os.Getpid() & 0xffff,
		timeout: cfg.timeout(),
	}, nil
}

// openICMP opens an unprivileged datagram ICMP socket, falling back to raw.
func openICMP(ip net.IP) (*icmp.PacketConn, net.Addr, error) {
	if conn, err := icmp.ListenPacket("udp4", "0.0.0.0"); err == nil {
		return conn, &net.UDPAddr{IP: ip}, nil
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, nil, err
	}
	return conn, &net.IPAddr{IP: ip}, nil
}

func resolveIPv4(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("%s is not an IPv4 address", host)
	}

	addrs, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address for %s", host)
}

// Type returns TypePing.
func (p *Ping) Type() Type {
	return TypePing
}

// Send emits one echo request and returns the marshaled message size.
func (p *Ping) Send(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, transient(err)
	}

	p.seq++
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  p.seq & 0xffff,
			Data: p.payload,
		},
	}

	wire, err := msg.Marshal(nil)
	if err != nil {
		return 0, transient(err)
	}

	p.conn.SetWriteDeadline(time.Now().Add(p.timeout))
	n, err := p.conn.WriteTo(wire, p.dst)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// Close releases the ICMP socket. Sends after Close fail fatally.
func (p *Ping) Close() error {
	return p.conn.Close()
}

var _ Emitter = (*Ping)(nil)
