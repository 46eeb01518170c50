package e2e

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"rwkvd/internal/auth"
	"rwkvd/internal/config"
	"rwkvd/internal/httpapi"
	"rwkvd/internal/runtime"
	"rwkvd/internal/sched"
	"rwkvd/internal/state"
	"rwkvd/internal/tokenizer"
)

// scriptExecutor replays a fixed token script. The script position travels in
// state[0], so concurrent sequences each advance independently.
type scriptExecutor struct {
	mu     sync.Mutex
	script []int
	// block, when set, holds every Step call until the channel closes.
	block chan struct{}
}

func (e *scriptExecutor) Step(inputs []runtime.StepInput) ([]runtime.StepOutput, error) {
	e.mu.Lock()
	block := e.block
	e.mu.Unlock()
	if block != nil {
		<-block
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	outs := make([]runtime.StepOutput, len(inputs))
	for i, in := range inputs {
		next := make([]float32, len(in.State))
		copy(next, in.State)
		var logits []float32
		if in.WantLogits {
			pos := int(next[0])
			tok := 0
			if pos < len(e.script) {
				tok = e.script[pos]
			}
			logits = make([]float32, 64)
			logits[tok] = 100
			next[0] = float32(pos + 1)
		}
		outs[i] = runtime.StepOutput{State: next, Logits: logits}
	}
	return outs, nil
}

func (e *scriptExecutor) StateSize() int { return 8 }
func (e *scriptExecutor) Layers() int    { return 24 }
func (e *scriptExecutor) Close() error   { return nil }

type scriptBackend struct {
	mu   sync.Mutex
	exec *scriptExecutor
}

func (b *scriptBackend) Name() string           { return "fake-cpu" }
func (b *scriptBackend) Device() runtime.Device { return runtime.DeviceCPU }
func (b *scriptBackend) Probe() bool            { return true }

func (b *scriptBackend) Open(runtime.ModelDescriptor, runtime.OpenOptions) (runtime.Executor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exec, nil
}

var (
	testBackend  = &scriptBackend{}
	registerOnce sync.Once
)

// Vocabulary used by every e2e test. Token 0 is EOS.
var testPieces = map[string]int{
	"<eot>": 0,
	"Hello": 1,
	"Hi":    2,
	"World": 3,
	"\n":    4,
	" ":     5,
}

// writeAssets lays out a model file, a vocab JSON and a TOML config the way an
// operator deployment would and returns the config path.
func writeAssets(t *testing.T, maxBatch int) string {
	t.Helper()
	dir := t.TempDir()

	modelPath := filepath.Join(dir, "model.st")
	if err := os.WriteFile(modelPath, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	vocabPath := filepath.Join(dir, "vocab.json")
	vb, err := json.Marshal(testPieces)
	if err != nil {
		t.Fatalf("marshal vocab: %v", err)
	}
	if err := os.WriteFile(vocabPath, vb, 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}

	cfgBody := `
[model]
model_path = "` + modelPath + `"
model_name = "e2e-3b"
max_batch = ` + strconv.Itoa(maxBatch) + `
max_runtime_batch = 2
token_chunk_size = 8

[tokenizer]
path = "` + vocabPath + `"

[adapter]
mode = "cpu"
`
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte(cfgBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

// newStack boots the whole server from a config file over the scripted backend.
func newStack(t *testing.T, script []int, maxBatch int) (*httptest.Server, *scriptExecutor) {
	t.Helper()
	registerOnce.Do(func() { runtime.Register(testBackend) })
	exec := &scriptExecutor{script: script}
	testBackend.mu.Lock()
	testBackend.exec = exec
	testBackend.mu.Unlock()

	cfg, err := config.Load(writeAssets(t, maxBatch))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	tok, err := tokenizer.Load(cfg.Tokenizer.Path)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}
	rt := runtime.NewManager(
		runtime.Selection{Mode: cfg.Adapter.Mode, Index: cfg.Adapter.Selection},
		cfg.Model.HeadChunkSize,
		zerolog.Nop(),
	)
	if err := rt.Load(runtime.ModelDescriptor{
		Name:      cfg.Model.Name,
		Path:      cfg.Model.Path,
		Quant:     cfg.Model.Quant,
		QuantType: runtime.QuantType(cfg.Model.QuantType),
	}); err != nil {
		t.Fatalf("load model: %v", err)
	}
	cache := state.NewCache(cfg.Model.MaxBatch, exec.StateSize(), exec.Layers(), cfg.Model.StateChunkSize)
	s := sched.New(sched.Config{
		MaxRuntimeBatch: cfg.Model.MaxRuntimeBatch,
		TokenChunkSize:  cfg.Model.TokenChunkSize,
		Stop:            cfg.Model.Stop,
	}, rt, cache, tok, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	srv := httptest.NewServer(httpapi.NewServer(s, rt, auth.NewKeystore(cfg.AppKeys), httpapi.Options{
		ModelName:       cfg.Model.Name,
		MaxBatch:        cfg.Model.MaxBatch,
		MaxRuntimeBatch: cfg.Model.MaxRuntimeBatch,
	}, zerolog.Nop()).Mux())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, exec
}
