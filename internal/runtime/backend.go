package runtime

import "sync"

// Backend registry. Native backends register from build-tagged init funcs so
// default builds stay CGO-free (same arrangement the kernel bindings use).
var (
	backendMu sync.Mutex
	backends  []Backend
)

// Register adds a backend to the probe order. GPU backends should register
// before CPU ones so "auto" prefers an accelerator when one answers.
func Register(b Backend) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backends = append(backends, b)
}

// registered returns a snapshot of the registry.
func registered() []Backend {
	backendMu.Lock()
	defer backendMu.Unlock()
	out := make([]Backend, len(backends))
	copy(out, backends)
	return out
}

// resolve picks the backend for a selection. "auto" probes registered GPU
// backends first and falls back to CPU; explicit modes require a usable
// backend of that device class.
func resolve(sel Selection) (Backend, error) {
	all := registered()
	if len(all) == 0 {
		return nil, ErrLoadf("no execution backend built into this binary")
	}
	switch sel.Mode {
	case "cpu", "gpu":
		want := DeviceCPU
		if sel.Mode == "gpu" {
			want = DeviceGPU
		}
		for _, b := range all {
			if b.Device() == want && b.Probe() {
				return b, nil
			}
		}
		return nil, ErrLoadf("no usable %s backend", sel.Mode)
	default: // auto
		for _, b := range all {
			if b.Device() == DeviceGPU && b.Probe() {
				return b, nil
			}
		}
		for _, b := range all {
			if b.Device() == DeviceCPU && b.Probe() {
				return b, nil
			}
		}
		return nil, ErrLoadf("no usable backend for auto selection")
	}
}
