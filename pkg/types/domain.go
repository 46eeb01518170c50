package types

// ModelStatus describes the currently loaded model for /status.
type ModelStatus struct {
	// Configured model name.
	Name string `json:"name"`
	// Absolute path to the model file on disk.
	Path string `json:"path"`
	// Number of quantized layers (0 = full precision).
	Quant int `json:"quant"`
	// Quantization scheme, e.g. Int8 or NF4.
	QuantType string `json:"quant_type,omitempty"`
	// Resolved compute device (cpu or gpu).
	Device string `json:"device"`
	// Number of attached weight deltas.
	Adapters int `json:"adapters"`
}

// ReloadRequest is the body of POST /admin/reload. All fields optional; an
// empty body reopens the currently loaded model.
type ReloadRequest struct {
	ModelPath   string      `json:"model_path,omitempty"`
	ModelName   string      `json:"model_name,omitempty"`
	Quant       int         `json:"quant,omitempty"`
	QuantType   string      `json:"quant_type,omitempty"`
	EmbedDevice string      `json:"embed_device,omitempty"`
	Turbo       bool        `json:"turbo,omitempty"`
	Lora        []LoraDelta `json:"lora,omitempty"`
}

// LoraDelta names one weight delta in a reload request.
type LoraDelta struct {
	Alpha float32 `json:"alpha"`
	Path  string  `json:"path"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	State           string       `json:"state"`
	Model           *ModelStatus `json:"model,omitempty"`
	Error           string       `json:"error,omitempty"`
	MaxBatch        int          `json:"max_batch"`
	MaxRuntimeBatch int          `json:"max_runtime_batch"`
	ResidentStates  int          `json:"resident_states"`
	QueuedSequences int          `json:"queued_sequences"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
}
