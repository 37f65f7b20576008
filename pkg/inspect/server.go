// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package inspect serves a read-only HTTP API over snapshots of an RTI client's directories.
//
// The RTI client is not safe for concurrent use. Thus, the goroutine polling the client takes Snapshots and passes
// them to the Server by calling Update; HTTP requests are only ever answered from the latest Snapshot.
//
//	GET /status         phase, broker version and runtime state of the client
//	GET /clients        all known clients
//	GET /clients/{id}   one known client
//	GET /channels       all known channels, including this client's usage
//	GET /measures       all known measures
//	GET /metrics        Prometheus metrics, if a Gatherer was passed
package inspect

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/inhumate/rti-go/pkg/rti"
)

// Server is a http.Handler for the introspection API.
type Server struct {
	router *mux.Router

	mutex    sync.RWMutex
	snapshot Snapshot
}

// NewServer registers the introspection API on a router. The gatherer may be nil.
func NewServer(router *mux.Router, gatherer prometheus.Gatherer) (s *Server) {
	s = &Server{
		router:   router,
		snapshot: Snapshot{Phase: rti.Disconnected},
	}

	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/clients", s.handleClients).Methods(http.MethodGet)
	s.router.HandleFunc("/clients/{id}", s.handleClient).Methods(http.MethodGet)
	s.router.HandleFunc("/channels", s.handleChannels).Methods(http.MethodGet)
	s.router.HandleFunc("/measures", s.handleMeasures).Methods(http.MethodGet)

	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return s
}

// ServeHTTP is a http.Handler to be bound to a HTTP endpoint, e.g., /inspect.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Update the Snapshot to be served.
func (s *Server) Update(snap Snapshot) {
	s.mutex.Lock()
	s.snapshot = snap
	s.mutex.Unlock()
}

func (s *Server) current() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.snapshot
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).WithField("path", r.URL.Path).Warn("Failed to write inspection response")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.current().status())
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	snap := s.current()

	resps := make([]ClientResponse, 0, len(snap.Clients))
	for _, c := range snap.Clients {
		resps = append(resps, newClientResponse(c))
	}
	writeJSON(w, r, http.StatusOK, resps)
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	for _, c := range s.current().Clients {
		if c.ID == id {
			writeJSON(w, r, http.StatusOK, newClientResponse(c))
			return
		}
	}

	log.WithField("client", id).Debug("Inspection request for an unknown client")
	writeJSON(w, r, http.StatusNotFound, ErrorResponse{Error: "unknown client " + id})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.current().channels())
}

func (s *Server) handleMeasures(w http.ResponseWriter, r *http.Request) {
	snap := s.current()

	resps := make([]MeasureResponse, 0, len(snap.Measures))
	for _, m := range snap.Measures {
		resps = append(resps, newMeasureResponse(m))
	}
	writeJSON(w, r, http.StatusOK, resps)
}
