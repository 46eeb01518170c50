// Package runtime owns model loading: device resolution, the quantization
// plan, optional weight-delta merging, and atomic reload. It is invoked once
// per load/reload and holds no per-request state.
package runtime

import (
	"sync"

	"github.com/rs/zerolog"

	"rwkvd/internal/common/fsutil"
)

// handle pairs a loaded executor with the descriptor it was built from.
type handle struct {
	desc     ModelDescriptor
	device   Device
	backend  string
	executor Executor
}

// Manager resolves the adapter selection, applies the quantization plan, and
// swaps loaded models atomically. A failed reload leaves the prior model serving.
type Manager struct {
	mu  sync.RWMutex
	cur *handle
	sel Selection
	log zerolog.Logger

	headChunkSize int
}

// NewManager constructs an unloaded Manager.
func NewManager(sel Selection, headChunkSize int, log zerolog.Logger) *Manager {
	return &Manager{
		sel:           sel,
		headChunkSize: headChunkSize,
		log:           log.With().Str("component", "runtime").Logger(),
	}
}

// Load opens the descriptor on the resolved device and installs it as the
// serving model. On failure the previously loaded model, if any, keeps serving.
func (m *Manager) Load(desc ModelDescriptor) error {
	path, err := fsutil.Resolve(desc.Path)
	if err != nil {
		return ErrLoad("model path", err)
	}
	desc.Path = path
	if !fsutil.PathExists(desc.Path) {
		return ErrLoadf("model file not found: %s", desc.Path)
	}
	for i, d := range desc.Deltas {
		dp, err := fsutil.Resolve(d.Path)
		if err != nil {
			return ErrLoad("delta path", err)
		}
		desc.Deltas[i].Path = dp
		if !fsutil.PathExists(dp) {
			return ErrLoadf("weight delta not found: %s", dp)
		}
	}

	backend, err := resolve(m.sel)
	if err != nil {
		return err
	}
	exec, err := backend.Open(desc, OpenOptions{
		Device:        backend.Device(),
		DeviceIndex:   m.sel.Index,
		HeadChunkSize: m.headChunkSize,
		Turbo:         desc.Turbo,
	})
	if err != nil {
		return ErrLoad("open model", err)
	}
	if desc.Quant > exec.Layers() {
		_ = exec.Close()
		return ErrLoadf("quant layer count %d exceeds model layers %d", desc.Quant, exec.Layers())
	}

	next := &handle{desc: desc, device: backend.Device(), backend: backend.Name(), executor: exec}

	m.mu.Lock()
	prev := m.cur
	m.cur = next
	m.mu.Unlock()

	if prev != nil {
		_ = prev.executor.Close()
	}
	m.log.Info().
		Str("model", desc.Name).
		Str("path", desc.Path).
		Str("backend", backend.Name()).
		Str("device", string(backend.Device())).
		Int("quant", desc.Quant).
		Str("quant_type", string(desc.QuantType)).
		Int("deltas", len(desc.Deltas)).
		Msg("model loaded")
	return nil
}

// Reload reopens the current descriptor. Used by the scheduler after a
// device-fatal step before further ticks proceed.
func (m *Manager) Reload() error {
	m.mu.RLock()
	cur := m.cur
	m.mu.RUnlock()
	if cur == nil {
		return ErrLoadf("no model loaded")
	}
	m.log.Warn().Str("model", cur.desc.Name).Msg("reloading model")
	return m.Load(cur.desc)
}

// Executor returns the serving executor, or nil when no model is loaded.
func (m *Manager) Executor() Executor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return nil
	}
	return m.cur.executor
}

// Descriptor returns the serving model descriptor and resolved device.
func (m *Manager) Descriptor() (ModelDescriptor, Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return ModelDescriptor{}, "", false
	}
	return m.cur.desc, m.cur.device, true
}

// Close releases the serving executor.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return nil
	}
	err := m.cur.executor.Close()
	m.cur = nil
	return err
}
