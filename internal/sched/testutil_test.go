package sched

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"rwkvd/internal/runtime"
	"rwkvd/internal/state"
	"rwkvd/internal/tokenizer"
)

// fakeExecutor is a scripted stand-in for the kernel backend. The script
// position travels inside the recurrent state (element 0), so the executor
// itself stays stateless across sequences, like the real primitive.
type fakeExecutor struct {
	mu        sync.Mutex
	script    []int
	vocabSize int
	stateSize int
	layers    int

	calls      int
	batchSizes []int
	firstSeen  map[int]int // first prompt token -> call index of first step

	seqErr func(runtime.StepInput) error
	fatal  error // one-shot batch-fatal error
}

func newFakeExecutor(script []int) *fakeExecutor {
	return &fakeExecutor{
		script:    script,
		vocabSize: 64,
		stateSize: 8,
		layers:    24,
		firstSeen: make(map[int]int),
	}
}

func (f *fakeExecutor) Step(inputs []runtime.StepInput) ([]runtime.StepOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls
	f.calls++
	f.batchSizes = append(f.batchSizes, len(inputs))
	if f.fatal != nil {
		err := f.fatal
		f.fatal = nil
		return nil, err
	}
	outs := make([]runtime.StepOutput, len(inputs))
	for i, in := range inputs {
		if in.Mode == runtime.ModePrefill && len(in.Tokens) > 0 {
			if _, ok := f.firstSeen[in.Tokens[0]]; !ok {
				f.firstSeen[in.Tokens[0]] = call
			}
		}
		if f.seqErr != nil {
			if err := f.seqErr(in); err != nil {
				outs[i] = runtime.StepOutput{Err: err}
				continue
			}
		}
		next := make([]float32, len(in.State))
		copy(next, in.State)
		var logits []float32
		if in.WantLogits {
			pos := int(next[0])
			tok := 0
			if pos < len(f.script) {
				tok = f.script[pos]
			}
			logits = make([]float32, f.vocabSize)
			logits[tok] = 100
			next[0] = float32(pos + 1)
		}
		outs[i] = runtime.StepOutput{State: next, Logits: logits}
	}
	return outs, nil
}

func (f *fakeExecutor) StateSize() int { return f.stateSize }
func (f *fakeExecutor) Layers() int    { return f.layers }
func (f *fakeExecutor) Close() error   { return nil }

func (f *fakeExecutor) stepCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeBackend hands out the current test executor. A single instance is
// registered for the whole test binary; tests swap the executor.
type fakeBackend struct {
	mu    sync.Mutex
	exec  *fakeExecutor
	opens int
}

func (b *fakeBackend) Name() string           { return "fake-cpu" }
func (b *fakeBackend) Device() runtime.Device { return runtime.DeviceCPU }
func (b *fakeBackend) Probe() bool            { return true }

func (b *fakeBackend) Open(desc runtime.ModelDescriptor, opts runtime.OpenOptions) (runtime.Executor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	return b.exec, nil
}

func (b *fakeBackend) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

var (
	testBackend  = &fakeBackend{}
	registerOnce sync.Once
)

// testVocab covers the pieces the scheduler tests decode. Token 0 is EOS.
func testVocab() *tokenizer.Vocab {
	pieces := map[string]int{
		"<eot>": 0,
		"Hello": 1,
		"Hi":    2,
		"World": 3,
		"\n":    4,
	}
	// one single-byte piece per fairness-test sequence
	for i := 0; i < 26; i++ {
		pieces[string(rune('A'+i))] = 10 + i
	}
	return tokenizer.New(pieces)
}

// newTestSched wires a scheduler over the fake backend.
func newTestSched(t *testing.T, exec *fakeExecutor, cfg Config, maxBatch int) (*Scheduler, *runtime.Manager) {
	t.Helper()
	registerOnce.Do(func() { runtime.Register(testBackend) })
	testBackend.mu.Lock()
	testBackend.exec = exec
	testBackend.mu.Unlock()

	modelPath := filepath.Join(t.TempDir(), "model.st")
	if err := os.WriteFile(modelPath, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	rt := runtime.NewManager(runtime.Selection{Mode: "cpu"}, 512, zerolog.Nop())
	if err := rt.Load(runtime.ModelDescriptor{Name: "test", Path: modelPath, QuantType: runtime.QuantInt8}); err != nil {
		t.Fatalf("load: %v", err)
	}
	cache := state.NewCache(maxBatch, exec.stateSize, exec.layers, 4)
	return New(cfg, rt, cache, testVocab(), zerolog.Nop()), rt
}

// tickUntilDone drives the tick loop until the handle finishes or the bound runs out.
func tickUntilDone(t *testing.T, s *Scheduler, h *Handle, bound int) *Result {
	t.Helper()
	for i := 0; i < bound; i++ {
		if r := h.Result(); r != nil {
			return r
		}
		s.tick()
	}
	if r := h.Result(); r != nil {
		return r
	}
	t.Fatalf("sequence did not finish within %d ticks", bound)
	return nil
}

// drainDeltas concatenates everything streamed on a finished handle.
func drainDeltas(h *Handle) string {
	var out string
	for d := range h.Output() {
		out += d
	}
	return out
}

// admitParams builds deterministic admission parameters for tests.
func admitParams(prompt string) AdmitParams {
	return AdmitParams{
		AppID:      "test",
		Authorized: true,
		Prompt:     prompt,
		MaxTokens:  64,
		Sampler:    Sampler{TopP: 0.01},
	}
}
