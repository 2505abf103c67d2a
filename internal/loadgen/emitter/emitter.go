// Package emitter provides the pluggable traffic producers driven by workers.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Type identifies a traffic emitter variant.
type Type string

const (
	// TypeUDP writes fixed-size datagrams to the target.
	TypeUDP Type = "udp"

	// TypeTCPConnect performs a full TCP connect per send.
	TypeTCPConnect Type = "tcp_connect"

	// TypePing sends ICMP echo requests to the target.
	TypePing Type = "ping"

	// TypeHTTP issues GET requests against the target.
	TypeHTTP Type = "http"

	// TypeMixed rotates across all other variants per send.
	TypeMixed Type = "mixed"
)

// Types returns all valid emitter types.
func Types() []Type {
	return []Type{TypeUDP, TypeTCPConnect, TypePing, TypeHTTP, TypeMixed}
}

// Valid reports whether t names a known emitter variant.
func Valid(t Type) bool {
	switch t {
	case TypeUDP, TypeTCPConnect, TypePing, TypeHTTP, TypeMixed:
		return true
	}
	return false
}

// Emitter produces one unit of outbound traffic per Send call.
//
// Emitters are the only component that touches the wire. The worker loop is
// agnostic to what an emitter writes; it only consumes the byte count and the
// error classification.
//
// Send must bound its own blocking: every network operation carries the
// configured timeout, so a single unresponsive call can never stall a worker
// indefinitely. A timed-out send is reported as a transient error, not a hang.
//
// Emitters are not required to be safe for concurrent use; each worker owns
// its own instance.
type Emitter interface {
	// Type returns the emitter variant.
	Type() Type

	// Send emits one unit of traffic and returns the bytes written.
	// A non-nil error is a *SendError describing whether the worker
	// may keep going.
	Send(ctx context.Context) (int, error)

	// Close releases the emitter's network resources.
	Close() error
}

// Config contains the target and tuning shared by all emitter variants.
type Config struct {
	// Host is the target host or IP
	Host string

	// Port is the target port (ignored by ping)
	Port int

	// PayloadSize is the datagram/echo payload size in bytes
	PayloadSize int

	// Timeout bounds every network operation (default: 5s)
	Timeout time.Duration

	// HTTPPath is the request path for the http variant (default: "/")
	HTTPPath string

	// HTTPExpectPath is an optional gjson path checked against HTTP
	// response bodies; empty disables the check
	HTTPExpectPath string

	// HTTPExpectValue is the value HTTPExpectPath must equal
	HTTPExpectValue string

	// MixedTypes selects the sub-variants composed by the mixed emitter
	// (default: udp, tcp_connect, ping, http)
	MixedTypes []Type
}

// DefaultTimeout bounds network operations when Config.Timeout is zero.
const DefaultTimeout = 5 * time.Second

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// New creates an emitter of the given type.
//
// Construction performs the variant's one-time setup (opening sockets,
// building clients); a construction failure means no traffic of that type can
// flow at all and is surfaced to the coordinator before any worker spawns.
func New(t Type, cfg Config) (Emitter, error) {
	switch t {
	case TypeUDP:
		return NewUDP(cfg)
	case TypeTCPConnect:
		return NewTCPConnect(cfg)
	case TypePing:
		return NewPing(cfg)
	case TypeHTTP:
		return NewHTTP(cfg)
	case TypeMixed:
		return NewMixed(cfg)
	default:
		return nil, fmt.Errorf("unknown emitter type: %s", t)
	}
}

// Kind classifies a send failure.
type Kind int

const (
	// KindTransient marks a failure the worker should absorb and retry:
	// a dropped datagram, a refused connection, a timeout.
	KindTransient Kind = iota

	// KindFatal marks a local condition that prevents any further sends
	// from this emitter, such as a closed socket. The worker exits.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// SendError wraps a send failure with its worker-facing classification.
type SendError struct {
	Kind Kind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send error: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// transient wraps err as a retryable send failure.
func transient(err error) error {
	return &SendError{Kind: KindTransient, Err: err}
}

// fatal wraps err as a worker-terminating send failure.
func fatal(err error) error {
	return &SendError{Kind: KindFatal, Err: err}
}

// IsFatal reports whether err carries a fatal classification.
// Unclassified errors are treated as transient.
func IsFatal(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Kind == KindFatal
	}
	return false
}

// classify wraps a raw network error. A closed socket means the emitter's
// local resources are gone and no retry can succeed.
func classify(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return fatal(err)
	}
	return transient(err)
}
