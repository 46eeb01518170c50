package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rwkvd/internal/auth"
	"rwkvd/internal/runtime"
	"rwkvd/internal/sched"
	"rwkvd/pkg/types"
)

// maxBodyBytes limits request bodies on JSON endpoints.
const maxBodyBytes = 1 << 20

// Server wires the scheduler core and its collaborators to HTTP routes.
type Server struct {
	sched *sched.Scheduler
	rt    *runtime.Manager
	keys  *auth.Keystore
	log   zerolog.Logger

	modelName       string
	maxBatch        int
	maxRuntimeBatch int
}

// Options carries the static display values for /status.
type Options struct {
	ModelName       string
	MaxBatch        int
	MaxRuntimeBatch int
}

// NewServer constructs the HTTP layer.
func NewServer(s *sched.Scheduler, rt *runtime.Manager, keys *auth.Keystore, opts Options, log zerolog.Logger) *Server {
	return &Server{
		sched:           s,
		rt:              rt,
		keys:            keys,
		log:             log.With().Str("component", "http").Logger(),
		modelName:       opts.ModelName,
		maxBatch:        opts.MaxBatch,
		maxRuntimeBatch: opts.MaxRuntimeBatch,
	}
}

// Mux builds the chi router with the full middleware stack.
func (s *Server) Mux() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-App-Id", "X-Secret-Key"},
	}))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger(s.log))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.keys))
		r.Post("/v1/completions", s.handleCompletions)
		r.Post("/v1/chat/completions", s.handleChatCompletions)
		r.Post("/admin/reload", s.handleReload)
	})

	r.Get("/status", s.handleStatus)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.rt.Executor() != nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	cred := requestCredentials(r)
	params := sched.AdmitParams{
		AppID:      cred.appID,
		Authorized: cred.authorized,
		Prompt:     req.Prompt,
		MaxTokens:  req.MaxTokens,
		Stop:       req.Stop,
		Sampler: sched.Sampler{
			Temperature:      req.Temperature,
			TopP:             req.TopP,
			PresencePenalty:  req.PresencePenalty,
			FrequencyPenalty: req.FrequencyPenalty,
		},
	}
	s.runGeneration(w, r, "text_completion", params, req.Stream, false)
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "messages are required")
		return
	}
	stop := []string(req.Stop)
	if len(stop) == 0 {
		// Chat prompts join turns with a blank line, so a blank line ends the
		// assistant's turn.
		stop = []string{"\n\n"}
	}
	cred := requestCredentials(r)
	params := sched.AdmitParams{
		AppID:      cred.appID,
		Authorized: cred.authorized,
		Prompt:     renderChatPrompt(req.Messages),
		MaxTokens:  req.MaxTokens,
		Stop:       stop,
		Sampler: sched.Sampler{
			Temperature:      req.Temperature,
			TopP:             req.TopP,
			PresencePenalty:  req.PresencePenalty,
			FrequencyPenalty: req.FrequencyPenalty,
		},
	}
	s.runGeneration(w, r, "chat.completion", params, req.Stream, true)
}

// renderChatPrompt flattens a conversation into the model's dialogue format.
func renderChatPrompt(msgs []types.ChatRecord) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Role.Display()+": "+strings.TrimSpace(m.Content))
	}
	return strings.Join(parts, "\n\n") + "\n\n" + types.RoleAssistant.Display() + ":"
}

// runGeneration admits the request and relays the handle's output. Client
// disconnect cancels the sequence; cancellation lands at the next tick.
func (s *Server) runGeneration(w http.ResponseWriter, r *http.Request, object string, params sched.AdmitParams, stream, chat bool) {
	h, err := s.sched.Admit(params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	ctx, cancel := joinContexts(baseCtx, r.Context())
	defer cancel()

	if stream {
		sse := newSSEWriter(w)
		for {
			select {
			case d, ok := <-h.Output():
				if !ok {
					res := h.Result()
					if res.Err != nil {
						// Failed sequences must be distinguishable from clean
						// stops even after a 200 header is out.
						_ = sse.event(types.ErrorResponse{Error: res.Err.Error(), Code: statusFor(res.Err)})
						sse.done()
						return
					}
					_ = sse.event(delta(object, s.modelName, res.Tail, res.Reason))
					sse.done()
					return
				}
				_ = sse.event(delta(object, s.modelName, d, types.FinishNull))
			case <-ctx.Done():
				h.Cancel()
				for range h.Output() {
				}
				return
			}
		}
	}

	// Buffered: drain the stream, then answer from the final result.
	for {
		select {
		case _, ok := <-h.Output():
			if !ok {
				res := h.Result()
				if res.Err != nil {
					writeMappedError(w, res.Err)
					return
				}
				choice := types.Choice{Index: 0, FinishReason: res.Reason}
				if chat {
					choice.Message = &types.ChatRecord{Role: types.RoleAssistant, Content: res.Text}
				} else {
					choice.Text = res.Text
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(types.CompletionResponse{
					Object:  object,
					Model:   s.modelName,
					Choices: []types.Choice{choice},
					Usage:   res.Usage,
				})
				return
			}
		case <-ctx.Done():
			h.Cancel()
			for range h.Output() {
			}
			return
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.sched.Stats()
	resp := types.StatusResponse{
		State:           "unloaded",
		MaxBatch:        s.maxBatch,
		MaxRuntimeBatch: s.maxRuntimeBatch,
		ResidentStates:  stats.Resident,
		QueuedSequences: stats.Queued,
		UptimeSeconds:   int64(stats.Uptime.Seconds()),
	}
	if desc, device, ok := s.rt.Descriptor(); ok {
		resp.State = "ready"
		resp.Model = &types.ModelStatus{
			Name:      desc.Name,
			Path:      desc.Path,
			Quant:     desc.Quant,
			QuantType: string(desc.QuantType),
			Device:    string(device),
			Adapters:  len(desc.Deltas),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleReload swaps the model. An empty body reopens the current descriptor;
// otherwise the body names a new one. A failed reload leaves the prior model
// serving and reports the error.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	cred := requestCredentials(r)
	if !cred.authorized {
		writeMappedError(w, sched.ErrUnauthorized(cred.appID))
		return
	}
	var req types.ReloadRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	var err error
	if req.ModelPath == "" {
		err = s.rt.Reload()
	} else {
		desc := runtime.ModelDescriptor{
			Name:        req.ModelName,
			Path:        req.ModelPath,
			Quant:       req.Quant,
			QuantType:   runtime.QuantType(req.QuantType),
			EmbedDevice: runtime.Device(strings.ToLower(req.EmbedDevice)),
			Turbo:       req.Turbo,
		}
		for _, l := range req.Lora {
			desc.Deltas = append(desc.Deltas, runtime.WeightDelta{Alpha: l.Alpha, Path: l.Path})
		}
		err = s.rt.Load(desc)
	}
	if err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
