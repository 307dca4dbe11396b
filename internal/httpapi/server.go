package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetd/internal/affinity"
	"fleetd/pkg/types"
)

// Service defines the orchestrator surface required by the HTTP API layer.
type Service interface {
	Fleet() types.FleetStatus
	Slots() []types.SlotSnapshot
	Ready() bool
	ScaleTo(ctx context.Context, target int) (types.ScaleResult, error)
	AddNewServer() int
	RemoveServer(id int) error
	StartInstance(ctx context.Context, id int) error
	StopInstance(ctx context.Context, id int, graceful bool) error
	ResetCrashed(id int) error
	ReportClients(id, connected int) error
	SetProxyAttached(id int, attached bool) error
	Recommendation(serverCount int) affinity.Recommendation
	Assignments() []affinity.Assignment
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Get("/fleet", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Fleet())
	})

	r.Post("/fleet/scale", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var req types.ScaleRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if req.Target < 0 {
			writeJSONError(w, http.StatusBadRequest, "target must be >= 0")
			return
		}
		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		res, err := svc.ScaleTo(ctx, req.Target)
		if err != nil {
			status := statusForError(err)
			writeJSONError(w, status, err.Error())
			logRequest(r, status, start, err)
			return
		}
		// Partial failures still answer 200; the result carries them.
		writeJSON(w, http.StatusOK, res)
		logRequest(r, http.StatusOK, start, nil)
	})

	r.Post("/fleet/servers", func(w http.ResponseWriter, r *http.Request) {
		id := svc.AddNewServer()
		writeJSON(w, http.StatusCreated, types.AddServerResponse{ID: id})
	})

	r.Get("/slots", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.SlotsResponse{Slots: svc.Slots()})
	})

	r.Post("/slots/{id}/start", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id, ok := slotID(w, r)
		if !ok {
			return
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.StartInstance(ctx, id); err != nil {
			status := statusForError(err)
			writeJSONError(w, status, err.Error())
			logRequest(r, status, start, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		logRequest(r, http.StatusAccepted, start, nil)
	})

	r.Post("/slots/{id}/stop", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id, ok := slotID(w, r)
		if !ok {
			return
		}
		graceful := r.URL.Query().Get("graceful") != "false"
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.StopInstance(ctx, id, graceful); err != nil {
			status := statusForError(err)
			writeJSONError(w, status, err.Error())
			logRequest(r, status, start, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		logRequest(r, http.StatusNoContent, start, nil)
	})

	r.Post("/slots/{id}/reset", func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}
		if err := svc.ResetCrashed(id); err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/slots/{id}/clients", func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}
		var req struct {
			Connected int `json:"connected"`
		}
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if req.Connected < 0 {
			writeJSONError(w, http.StatusBadRequest, "connected must be >= 0")
			return
		}
		if err := svc.ReportClients(id, req.Connected); err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Put("/slots/{id}/proxy", func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}
		var req struct {
			Attached bool `json:"attached"`
		}
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if err := svc.SetProxyAttached(id, req.Attached); err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Delete("/slots/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}
		if err := svc.RemoveServer(id); err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/affinity/recommendation", func(w http.ResponseWriter, r *http.Request) {
		servers := 0
		if v := r.URL.Query().Get("servers"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSONError(w, http.StatusBadRequest, "servers must be a non-negative integer")
				return
			}
			servers = n
		}
		rec := svc.Recommendation(servers)
		writeJSON(w, http.StatusOK, types.RecommendationResponse{
			TotalCores:                rec.TotalCores,
			ReservedCores:             rec.ReservedCores,
			AvailableCores:            rec.AvailableCores,
			RecommendedCoresPerServer: rec.RecommendedCoresPerServer,
			MaxServersRecommended:     rec.MaxServersRecommended,
		})
	})

	r.Get("/affinity/assignments", func(w http.ResponseWriter, r *http.Request) {
		entries := svc.Assignments()
		out := make([]types.AssignmentRecord, 0, len(entries))
		for _, a := range entries {
			out = append(out, types.AssignmentRecord{
				SlotID:       a.SlotID,
				ProcessID:    a.ProcessID,
				AffinityMask: a.AffinityMask,
				AssignedAt:   a.AssignedAt.Unix(),
			})
		}
		writeJSON(w, http.StatusOK, types.AssignmentsResponse{Assignments: out})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// slotID extracts and validates the {id} route parameter.
func slotID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		writeJSONError(w, http.StatusBadRequest, "invalid slot id")
		return 0, false
	}
	return id, true
}

// decodeJSONBody enforces content type and body size before decoding.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}
