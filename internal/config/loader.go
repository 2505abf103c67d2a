package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// configSchema describes the JSON config file shape. JSON configs are checked
// against it before decoding so a typoed key fails loudly instead of being
// silently ignored.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["target", "types"],
  "properties": {
    "name":           {"type": "string"},
    "target":         {"type": "string", "minLength": 1},
    "port":           {"type": "integer", "minimum": 1, "maximum": 65535},
    "types": {
      "type": "array",
      "minItems": 1,
      "items": {"enum": ["udp", "tcp_connect", "ping", "http", "mixed"]}
    },
    "workers":        {"type": "integer", "minimum": 1, "maximum": 1000},
    "rate":           {"type": "number", "minimum": 0},
    "packetSize":     {"type": "integer", "minimum": 1, "maximum": 65507},
    "duration":       {"type": "string"},
    "timeout":        {"type": "string"},
    "reportInterval": {"type": "string"},
    "gracePeriod":    {"type": "string"},
    "httpPath":       {"type": "string"},
    "httpExpect": {
      "type": "object",
      "additionalProperties": false,
      "required": ["path"],
      "properties": {
        "path":   {"type": "string", "minLength": 1},
        "equals": {"type": "string"}
      }
    }
  }
}`

// Load reads a TestConfig from a YAML or JSON file, applies defaults, and
// validates it. The format is chosen by file extension.
func Load(path string) (*TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg *TestConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = parseYAML(data)
	case ".json":
		cfg, err = parseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .yaml, .yml or .json)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseYAML decodes a YAML config. Unknown keys are rejected.
func parseYAML(data []byte) (*TestConfig, error) {
	var cfg TestConfig
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseJSON validates a JSON config against the embedded schema, then decodes.
func parseJSON(data []byte) (*TestConfig, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", strings.NewReader(configSchema)); err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("config does not match schema: %w", err)
	}

	var cfg TestConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
