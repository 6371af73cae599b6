// Package httpapi is the thin, non-core (spec.md §1) REST+SSE projection
// of the control façade: JSON envelopes, an `/events` Server-Sent-Events
// stream, and `/metrics` for Prometheus scraping.
//
// Grounded on the teacher's cmd/exporter_example2/main.go composition:
// a plain net/http.ServeMux, promhttp.Handler() mounted directly, no
// framework. SSE framing follows the bare http.Flusher idiom since no
// pack example wires a dedicated SSE library.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ripnet/ripd/pkg/config"
	"github.com/ripnet/ripd/pkg/control"
	"github.com/ripnet/ripd/pkg/errs"
	"github.com/ripnet/ripd/pkg/rib"
)

// envelope is the uniform response shape every JSON endpoint returns.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Server wires the control façade onto an http.ServeMux.
type Server struct {
	facade *control.Facade
	log    *logrus.Entry
	mux    *http.ServeMux
}

// NewServer builds the mux; callers pass it to http.Server{Handler: ...}
// the way the teacher's cmd/exporter_example2 did.
func NewServer(facade *control.Facade, log *logrus.Entry) *Server {
	s := &Server{facade: facade, log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/routes", s.handleRoutes)
	s.mux.HandleFunc("/routes/static", s.handleCreateStatic)
	s.mux.HandleFunc("/routes/delete", s.handleDeleteRoute)
	s.mux.HandleFunc("/config", s.handleConfig)
	s.mux.HandleFunc("/config/history", s.handleConfigHistory)
	s.mux.HandleFunc("/config/diff", s.handleConfigDiff)
	s.mux.HandleFunc("/config/rollback", s.handleConfigRollback)
	s.mux.HandleFunc("/events", s.handleEvents)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.ExitCode(err) {
	case 2:
		status = http.StatusBadRequest
	case 3:
		status = http.StatusBadGateway
	case 5:
		status = http.StatusConflict
	}
	writeJSON(w, status, envelope{Success: false, Message: err.Error()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.facade.GetStatus(r.Context())
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: st})
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: s.facade.ListRoutes(r.Context())})
}

type staticRouteRequest struct {
	Destination string `json:"destination"`
	Mask        string `json:"mask"`
	Gateway     string `json:"gateway"`
	Metric      int    `json:"metric"`
	Tag         int    `json:"tag,omitempty"`
}

func (s *Server) handleCreateStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req staticRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.KindConfigValidation, "decode request body", err))
		return
	}

	dest, err := netip.ParseAddr(req.Destination)
	if err != nil {
		writeError(w, errs.Wrap(errs.KindConfigValidation, "invalid destination", err))
		return
	}
	maskLen, err := strconv.Atoi(req.Mask)
	if err != nil {
		writeError(w, errs.Wrap(errs.KindConfigValidation, "invalid mask length", err))
		return
	}
	gw, err := netip.ParseAddr(req.Gateway)
	if err != nil {
		writeError(w, errs.Wrap(errs.KindConfigValidation, "invalid gateway", err))
		return
	}

	route := config.StaticRoute{Destination: dest, MaskLen: maskLen, Gateway: gw, Metric: req.Metric, Tag: req.Tag}
	if err := s.facade.CreateStaticRoute(r.Context(), route); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true})
}

func (s *Server) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pfx, err := parsePrefixQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.facade.DeleteRoute(r.Context(), pfx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

func parsePrefixQuery(r *http.Request) (rib.Prefix, error) {
	raw := r.URL.Query().Get("prefix")
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return rib.Prefix{}, errs.New(errs.KindConfigValidation, "prefix must be addr/len")
	}
	addr, err := netip.ParseAddr(parts[0])
	if err != nil {
		return rib.Prefix{}, errs.Wrap(errs.KindConfigValidation, "invalid prefix address", err)
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return rib.Prefix{}, errs.Wrap(errs.KindConfigValidation, "invalid prefix length", err)
	}
	return rib.Prefix{Addr: addr, Len: length}, nil
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: s.facade.GetConfig()})
}

func (s *Server) handleConfigHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: s.facade.ListConfigHistory()})
}

func (s *Server) handleConfigDiff(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(r.URL.Query().Get("version"))
	if err != nil {
		writeError(w, errs.Wrap(errs.KindConfigValidation, "invalid version", err))
		return
	}
	diff, err := s.facade.DiffConfig(version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: diff})
}

func (s *Server) handleConfigRollback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	version, err := strconv.Atoi(r.URL.Query().Get("version"))
	if err != nil {
		writeError(w, errs.Wrap(errs.KindConfigValidation, "invalid version", err))
		return
	}
	if err := s.facade.RollbackConfig(r.Context(), version); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

// handleEvents streams the event bus as Server-Sent Events, spec.md §4.7
// SubscribeEvents.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	sub := s.facade.SubscribeEvents()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
