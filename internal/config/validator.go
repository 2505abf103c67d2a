package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// validTypes is the closed set of traffic types the harness knows.
var validTypes = map[string]bool{
	"udp":         true,
	"tcp_connect": true,
	"ping":        true,
	"http":        true,
	"mixed":       true,
}

// Validate checks the configuration before any worker is spawned.
//
// Returns nil if valid, or a *ValidationErrors collecting every problem so
// the operator can fix them all in one pass.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	if strings.TrimSpace(c.Target) == "" {
		errs.Add("target", "target host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		errs.Add("port", fmt.Sprintf("port must be between 1 and 65535, got %d", c.Port))
	}

	if c.Workers < 1 || c.Workers > 1000 {
		errs.Add("workers", fmt.Sprintf("workers must be between 1 and 1000, got %d", c.Workers))
	}

	if c.PacketSize < 1 || c.PacketSize > 65507 {
		errs.Add("packetSize", fmt.Sprintf("packet size must be between 1 and 65507 bytes, got %d", c.PacketSize))
	}

	if c.Rate < 0 {
		errs.Add("rate", "rate must be non-negative (0 = unlimited)")
	}

	if c.Duration < 0 {
		errs.Add("duration", "duration must be non-negative (0 = until interrupted)")
	}

	if c.Timeout < 0 {
		errs.Add("timeout", "timeout must be non-negative")
	}

	if c.ReportInterval < 0 {
		errs.Add("reportInterval", "report interval must be non-negative")
	}

	if c.GracePeriod < 0 {
		errs.Add("gracePeriod", "grace period must be non-negative")
	}

	if len(c.Types) == 0 {
		errs.Add("types", "at least one traffic type is required")
	}

	seen := make(map[string]bool)
	for i, t := range c.Types {
		field := fmt.Sprintf("types[%d]", i)
		if !validTypes[t] {
			errs.Add(field, fmt.Sprintf("unknown traffic type '%s' (valid: udp, tcp_connect, ping, http, mixed)", t))
			continue
		}
		if seen[t] {
			errs.Add(field, fmt.Sprintf("traffic type '%s' listed more than once", t))
		}
		seen[t] = true
	}

	if c.HTTPExpect != nil {
		if c.HTTPExpect.Path == "" {
			errs.Add("httpExpect.path", "path is required when httpExpect is set")
		}
		if !seen["http"] && !seen["mixed"] {
			errs.Add("httpExpect", "httpExpect requires the http or mixed traffic type")
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
