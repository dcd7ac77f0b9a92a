// Package health serves liveness and readiness probes for the conversation
// service.
//
//   - GET /healthz always answers 200: the process can serve HTTP.
//   - GET /readyz answers 200 only when every registered probe passes, so a
//     deployment does not receive learner traffic before its database and
//     providers are reachable.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout caps one dependency probe.
const probeTimeout = 5 * time.Second

// Probe checks one dependency. Check must return nil when the dependency is
// usable and must respect context cancellation.
type Probe struct {
	// Name labels the probe in the readiness response, e.g. "database".
	Name string

	Check func(ctx context.Context) error
}

// report is the JSON body of both endpoints.
type report struct {
	Status string            `json:"status"`
	Probes map[string]string `json:"probes,omitempty"`
}

// Handler evaluates a fixed probe list per readiness request. Safe for
// concurrent use.
type Handler struct {
	probes []Probe
}

// New returns a handler over the given probes. Probes run sequentially in
// the order given.
func New(probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{probes: p}
}

// Healthz is the liveness endpoint.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every probe with a [probeTimeout] deadline and reports 503 if
// any fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := report{Status: "ok", Probes: make(map[string]string, len(h.probes))}
	status := http.StatusOK

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Check(ctx)
		cancel()

		if err != nil {
			rep.Probes[p.Name] = "fail: " + err.Error()
			rep.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			rep.Probes[p.Name] = "ok"
		}
	}

	writeReport(w, status, rep)
}

// Register adds both routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeReport(w http.ResponseWriter, status int, rep report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
