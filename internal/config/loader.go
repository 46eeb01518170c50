package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by defaults in ApplyDefaults.
type Config struct {
	Model     Model     `json:"model" yaml:"model" toml:"model"`
	Lora      []Lora    `json:"lora" yaml:"lora" toml:"lora"`
	Tokenizer Tokenizer `json:"tokenizer" yaml:"tokenizer" toml:"tokenizer"`
	Adapter   Adapter   `json:"adapter" yaml:"adapter" toml:"adapter"`
	Listen    Listen    `json:"listen" yaml:"listen" toml:"listen"`
	AppKeys   []AppKey  `json:"app_keys" yaml:"app_keys" toml:"app_keys"`
	Log       Log       `json:"log" yaml:"log" toml:"log"`
}

// Model selects the weights and the scheduling limits around them.
type Model struct {
	Path            string   `json:"model_path" yaml:"model_path" toml:"model_path"`
	Name            string   `json:"model_name" yaml:"model_name" toml:"model_name"`
	Quant           int      `json:"quant" yaml:"quant" toml:"quant"`
	QuantType       string   `json:"quant_type" yaml:"quant_type" toml:"quant_type"`
	EmbedDevice     string   `json:"embed_device" yaml:"embed_device" toml:"embed_device"`
	MaxBatch        int      `json:"max_batch" yaml:"max_batch" toml:"max_batch"`
	MaxRuntimeBatch int      `json:"max_runtime_batch" yaml:"max_runtime_batch" toml:"max_runtime_batch"`
	TokenChunkSize  int      `json:"token_chunk_size" yaml:"token_chunk_size" toml:"token_chunk_size"`
	HeadChunkSize   int      `json:"head_chunk_size" yaml:"head_chunk_size" toml:"head_chunk_size"`
	StateChunkSize  int      `json:"state_chunk_size" yaml:"state_chunk_size" toml:"state_chunk_size"`
	Stop            []string `json:"stop" yaml:"stop" toml:"stop"`
	Turbo           bool     `json:"turbo" yaml:"turbo" toml:"turbo"`
}

// Lora declares an optional weight delta merged into the base weights at load.
type Lora struct {
	Alpha float32 `json:"alpha" yaml:"alpha" toml:"alpha"`
	Path  string  `json:"path" yaml:"path" toml:"path"`
}

// Tokenizer points at the vocabulary data consumed by the tokenizer collaborator.
type Tokenizer struct {
	Path string `json:"path" yaml:"path" toml:"path"`
}

// Adapter selects the compute device: "auto", "cpu", or "gpu" with an optional
// backend-specific selection index.
type Adapter struct {
	Mode      string `json:"mode" yaml:"mode" toml:"mode"`
	Selection int    `json:"selection" yaml:"selection" toml:"selection"`
}

// Listen configures the HTTP surface. TLS/ACME handling is external to the
// scheduler core; the toggles are parsed here so one file configures the process.
type Listen struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	Port     int    `json:"port" yaml:"port" toml:"port"`
	TLS      bool   `json:"tls" yaml:"tls" toml:"tls"`
	ACME     bool   `json:"acme" yaml:"acme" toml:"acme"`
	Domain   string `json:"domain" yaml:"domain" toml:"domain"`
	CertsDir string `json:"certs_dir" yaml:"certs_dir" toml:"certs_dir"`
}

// AppKey is one credential pair accepted by the admission gate.
type AppKey struct {
	AppID     string `json:"app_id" yaml:"app_id" toml:"app_id"`
	SecretKey string `json:"secret_key" yaml:"secret_key" toml:"secret_key"`
}

// Log configures structured logging output.
type Log struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty" toml:"pretty"`
}

// Load reads a configuration file based on its extension.
// Supports: .toml (primary), .yaml/.yml, .json
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
