// Package config provides configuration parsing and validation for the load
// generation harness.
package config

import (
	"time"
)

// TestConfig describes one load-generation run.
//
// A config comes either from CLI flags or from a YAML/JSON file; it is
// validated once, then treated as immutable for the life of the run.
//
// Example YAML:
//
//	name: "lab saturation"
//	target: 192.168.1.50
//	port: 8080
//	types: [udp, http]
//	workers: 10
//	rate: 500
//	packetSize: 1024
//	duration: 30s
type TestConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Target is the host or IP traffic is sent toward
	Target string `json:"target" yaml:"target"`

	// Port is the target port (ignored by the ping type)
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Types lists the traffic types to run simultaneously
	// Options: "udp", "tcp_connect", "ping", "http", "mixed"
	Types []string `json:"types" yaml:"types"`

	// Workers is the number of parallel workers per traffic type
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Rate is the packets-per-second budget of each worker (0 = unlimited)
	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`

	// PacketSize is the payload size in bytes for datagram-style types
	PacketSize int `json:"packetSize,omitempty" yaml:"packetSize,omitempty"`

	// Duration is how long to run; 0 means until interrupted
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Timeout bounds every network operation an emitter performs
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// ReportInterval is the cadence of live statistics lines
	ReportInterval Duration `json:"reportInterval,omitempty" yaml:"reportInterval,omitempty"`

	// GracePeriod is how long workers get to acknowledge shutdown
	GracePeriod Duration `json:"gracePeriod,omitempty" yaml:"gracePeriod,omitempty"`

	// HTTPPath is the request path used by the http type
	HTTPPath string `json:"httpPath,omitempty" yaml:"httpPath,omitempty"`

	// HTTPExpect optionally checks a JSON field of http responses
	HTTPExpect *HTTPExpect `json:"httpExpect,omitempty" yaml:"httpExpect,omitempty"`
}

// HTTPExpect checks one field of an HTTP response body.
type HTTPExpect struct {
	// Path is a gjson path into the response body (e.g. "status.healthy")
	Path string `json:"path" yaml:"path"`

	// Equals is the value the field must hold for the send to count as success
	Equals string `json:"equals" yaml:"equals"`
}

// Default values applied by ApplyDefaults.
const (
	DefaultPort           = 80
	DefaultWorkers        = 10
	DefaultPacketSize     = 1024
	DefaultTimeout        = 5 * time.Second
	DefaultReportInterval = time.Second
	DefaultGracePeriod    = 5 * time.Second
)

// ApplyDefaults fills in zero-valued optional fields.
func ApplyDefaults(c *TestConfig) {
	if c.Name == "" {
		c.Name = "load test"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if len(c.Types) == 0 {
		c.Types = []string{"udp"}
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.PacketSize == 0 {
		c.PacketSize = DefaultPacketSize
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(DefaultTimeout)
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = Duration(DefaultReportInterval)
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = Duration(DefaultGracePeriod)
	}
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if zero.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" || s == "0" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	if s == "" || s == "0" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
