package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *TestConfig {
	c := &TestConfig{
		Target: "192.168.1.50",
		Types:  []string{"udp"},
	}
	ApplyDefaults(c)
	return c
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() on a valid config = %v, want nil", err)
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TestConfig)
		field   string
		message string
	}{
		{
			name:   "missing target",
			mutate: func(c *TestConfig) { c.Target = "" },
			field:  "target",
		},
		{
			name:   "whitespace target",
			mutate: func(c *TestConfig) { c.Target = "   " },
			field:  "target",
		},
		{
			name:   "port too low",
			mutate: func(c *TestConfig) { c.Port = 0 },
			field:  "port",
		},
		{
			name:   "port too high",
			mutate: func(c *TestConfig) { c.Port = 70000 },
			field:  "port",
		},
		{
			name:   "zero workers",
			mutate: func(c *TestConfig) { c.Workers = 0 },
			field:  "workers",
		},
		{
			name:   "too many workers",
			mutate: func(c *TestConfig) { c.Workers = 1001 },
			field:  "workers",
		},
		{
			name:   "zero packet size",
			mutate: func(c *TestConfig) { c.PacketSize = 0 },
			field:  "packetSize",
		},
		{
			name:   "packet size above udp max",
			mutate: func(c *TestConfig) { c.PacketSize = 65508 },
			field:  "packetSize",
		},
		{
			name:   "negative rate",
			mutate: func(c *TestConfig) { c.Rate = -1 },
			field:  "rate",
		},
		{
			name:   "negative duration",
			mutate: func(c *TestConfig) { c.Duration = Duration(-time.Second) },
			field:  "duration",
		},
		{
			name:   "negative timeout",
			mutate: func(c *TestConfig) { c.Timeout = Duration(-time.Second) },
			field:  "timeout",
		},
		{
			name:   "no types",
			mutate: func(c *TestConfig) { c.Types = nil },
			field:  "types",
		},
		{
			name:    "unknown type",
			mutate:  func(c *TestConfig) { c.Types = []string{"udp", "smoke-signals"} },
			field:   "types[1]",
			message: "unknown traffic type",
		},
		{
			name:    "duplicate type",
			mutate:  func(c *TestConfig) { c.Types = []string{"udp", "udp"} },
			field:   "types[1]",
			message: "more than once",
		},
		{
			name:    "httpExpect without path",
			mutate:  func(c *TestConfig) { c.Types = []string{"http"}; c.HTTPExpect = &HTTPExpect{} },
			field:   "httpExpect.path",
			message: "path is required",
		},
		{
			name:    "httpExpect without http type",
			mutate:  func(c *TestConfig) { c.HTTPExpect = &HTTPExpect{Path: "status"} },
			field:   "httpExpect",
			message: "requires the http or mixed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}

			verrs, ok := err.(*ValidationErrors)
			if !ok {
				t.Fatalf("Validate() returned %T, want *ValidationErrors", err)
			}

			found := false
			for _, ve := range verrs.Errors {
				if ve.Field == tt.field {
					found = true
					if tt.message != "" && !strings.Contains(ve.Message, tt.message) {
						t.Errorf("Error on %q = %q, want it to mention %q", tt.field, ve.Message, tt.message)
					}
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want an error on field %q", err, tt.field)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &TestConfig{} // everything wrong at once

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want errors")
	}

	verrs := err.(*ValidationErrors)
	if len(verrs.Errors) < 4 {
		t.Errorf("Validate() collected %d errors, want at least 4 (all problems in one pass)", len(verrs.Errors))
	}
}

func TestValidate_MixedSatisfiesHTTPExpect(t *testing.T) {
	cfg := validConfig()
	cfg.Types = []string{"mixed"}
	cfg.HTTPExpect = &HTTPExpect{Path: "status", Equals: "ok"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil (mixed includes http)", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	e := &ValidationError{Field: "port", Message: "out of range"}
	if !strings.Contains(e.Error(), "port") || !strings.Contains(e.Error(), "out of range") {
		t.Errorf("Error() = %q, want field and message present", e.Error())
	}

	e = &ValidationError{Message: "bare message"}
	if !strings.Contains(e.Error(), "bare message") {
		t.Errorf("Error() = %q, want message present", e.Error())
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := &ValidationErrors{}
	if errs.HasErrors() {
		t.Error("HasErrors() on empty collection = true, want false")
	}

	errs.Add("a", "first")
	if got := errs.Error(); !strings.Contains(got, "first") {
		t.Errorf("Single error Error() = %q, want the message itself", got)
	}

	errs.Add("b", "second")
	got := errs.Error()
	if !strings.Contains(got, "2 validation errors") {
		t.Errorf("Error() = %q, want a count header", got)
	}
	if !strings.Contains(got, "first") || !strings.Contains(got, "second") {
		t.Errorf("Error() = %q, want both messages listed", got)
	}
}
