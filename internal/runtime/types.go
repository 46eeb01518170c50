package runtime

// Device is a resolved compute device. Auto exists only in configuration; by
// the time a model is loaded the selection is concrete.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// QuantType names the numeric scheme applied to quantized layers.
type QuantType string

const (
	QuantInt8 QuantType = "Int8"
	QuantNF4  QuantType = "NF4"
)

// WeightDelta is an optional low-rank additive modification (LoRA) merged into
// the base weights at load time, scaled by Alpha. Merge order is declaration order.
type WeightDelta struct {
	Alpha float32
	Path  string
}

// ModelDescriptor identifies the loaded weights and their numeric execution
// plan. Immutable after load; reload replaces it atomically.
type ModelDescriptor struct {
	Name        string
	Path        string
	Quant       int
	QuantType   QuantType
	EmbedDevice Device
	Deltas      []WeightDelta
	Turbo       bool
}

// Selection chooses which physical device executes tensor operations.
type Selection struct {
	// Mode is "auto", "cpu" or "gpu".
	Mode string
	// Index selects among multiple accelerators of the resolved backend.
	Index int
}

// StepMode distinguishes prompt ingestion from iterative decoding.
type StepMode int

const (
	// ModePrefill feeds prompt tokens; logits are only needed on the last chunk.
	ModePrefill StepMode = iota
	// ModeDecode feeds the previously sampled token and requests logits.
	ModeDecode
)

// StepInput is one sequence's share of a batched executor call.
type StepInput struct {
	// State is the sequence's recurrent state before the chunk. The executor
	// must not mutate it; the updated state is returned in StepOutput.
	State []float32
	// StateChunks are layer-chunk views over State, state_chunk_size layers
	// per chunk. Backends that upload state incrementally consume these;
	// concatenated in order they cover State exactly.
	StateChunks [][]float32
	// Tokens is the pending token chunk (<= token_chunk_size).
	Tokens []int
	// Mode selects prefill or decode handling.
	Mode StepMode
	// WantLogits requests the head projection for this sequence.
	WantLogits bool
}

// StepOutput is one sequence's result from a batched executor call.
type StepOutput struct {
	// State is the updated recurrent state; committed by the caller only when
	// Err is nil, keeping per-sequence updates atomic.
	State []float32
	// Logits is the head projection, present when requested and Err is nil.
	Logits []float32
	// Err is a per-sequence failure. It does not affect the other sequences
	// in the same call.
	Err error
}

// Executor is the opaque "execute one chunk" primitive. The scheduler calls it
// and must work correctly regardless of which kernel backend answers.
type Executor interface {
	// Step runs one chunked step for a batch of sequences. The returned slice
	// matches the input order. A non-nil error is batch-fatal (device loss);
	// per-sequence failures are reported in StepOutput.Err instead.
	Step(inputs []StepInput) ([]StepOutput, error)
	// StateSize is the per-sequence recurrent state length in elements.
	StateSize() int
	// Layers is the model layer count, used to validate quantization plans.
	Layers() int
	// Close releases device resources.
	Close() error
}

// Directives the manager passes to a backend when opening an executor.
type OpenOptions struct {
	Device        Device
	DeviceIndex   int
	HeadChunkSize int
	Turbo         bool
}

// Backend constructs executors for a class of devices. Native implementations
// register themselves from build-tagged files via Register.
type Backend interface {
	// Name identifies the backend ("cpu", "cuda", ...).
	Name() string
	// Device reports the device class this backend drives.
	Device() Device
	// Probe reports whether the backend's device is usable right now.
	Probe() bool
	// Open loads the descriptor and returns an executor bound to the device.
	Open(desc ModelDescriptor, opts OpenOptions) (Executor, error)
}
