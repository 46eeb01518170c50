package config

import "fmt"

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultMaxBatch        = 16
	DefaultMaxRuntimeBatch = 8
	DefaultTokenChunkSize  = 32
	DefaultHeadChunkSize   = 8192
	DefaultStateChunkSize  = 4
	DefaultPort            = 65530
)

// ApplyDefaults fills unset fields with package defaults.
func (c *Config) ApplyDefaults() {
	if c.Model.MaxBatch <= 0 {
		c.Model.MaxBatch = DefaultMaxBatch
	}
	if c.Model.MaxRuntimeBatch <= 0 {
		c.Model.MaxRuntimeBatch = DefaultMaxRuntimeBatch
	}
	if c.Model.TokenChunkSize <= 0 {
		c.Model.TokenChunkSize = DefaultTokenChunkSize
	}
	if c.Model.HeadChunkSize <= 0 {
		c.Model.HeadChunkSize = DefaultHeadChunkSize
	}
	if c.Model.StateChunkSize <= 0 {
		c.Model.StateChunkSize = DefaultStateChunkSize
	}
	if c.Model.QuantType == "" {
		c.Model.QuantType = "Int8"
	}
	if c.Model.EmbedDevice == "" {
		c.Model.EmbedDevice = "Cpu"
	}
	if c.Adapter.Mode == "" {
		c.Adapter.Mode = "auto"
	}
	if c.Listen.Addr == "" {
		c.Listen.Addr = "0.0.0.0"
	}
	if c.Listen.Port <= 0 {
		c.Listen.Port = DefaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects configurations the scheduler cannot honor.
func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return fmt.Errorf("model_path is required")
	}
	if c.Tokenizer.Path == "" {
		return fmt.Errorf("tokenizer path is required")
	}
	if c.Model.Quant < 0 {
		return fmt.Errorf("quant must be >= 0, got %d", c.Model.Quant)
	}
	switch c.Model.QuantType {
	case "Int8", "NF4":
	default:
		return fmt.Errorf("quant_type must be Int8 or NF4, got %q", c.Model.QuantType)
	}
	switch c.Model.EmbedDevice {
	case "Cpu", "Gpu":
	default:
		return fmt.Errorf("embed_device must be Cpu or Gpu, got %q", c.Model.EmbedDevice)
	}
	if c.Model.MaxRuntimeBatch > c.Model.MaxBatch {
		return fmt.Errorf("max_runtime_batch (%d) must not exceed max_batch (%d)",
			c.Model.MaxRuntimeBatch, c.Model.MaxBatch)
	}
	switch c.Adapter.Mode {
	case "auto", "cpu", "gpu":
	default:
		return fmt.Errorf("adapter mode must be auto, cpu or gpu, got %q", c.Adapter.Mode)
	}
	for i, l := range c.Lora {
		if l.Path == "" {
			return fmt.Errorf("lora[%d]: path is required", i)
		}
	}
	for i, k := range c.AppKeys {
		if k.AppID == "" || k.SecretKey == "" {
			return fmt.Errorf("app_keys[%d]: app_id and secret_key are required", i)
		}
	}
	return nil
}
