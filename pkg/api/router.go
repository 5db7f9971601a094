// Copyright 2024 Greptime Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api is the thin REST mapping onto store operations. It performs
// no controller logic: after a successful write the engine and pod manager
// observe the change and converge asynchronously.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/podctl/podctl/pkg/apierrors"
	"github.com/podctl/podctl/pkg/logger"
	"github.com/podctl/podctl/pkg/store"
)

// Server wires the Aggregate's stores onto the REST surface.
type Server struct {
	router *mux.Router
	store  *store.Aggregate
	l      logger.Logger
	ready  func() bool
}

func NewServer(aggregate *store.Aggregate, l logger.Logger, ready func() bool) *Server {
	s := &Server{router: mux.NewRouter(), store: aggregate, l: l, ready: ready}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	pods := s.router.PathPrefix("/api/v1/namespaces/{ns}/pods").Subrouter()
	pods.HandleFunc("", s.createPod).Methods(http.MethodPost)
	pods.HandleFunc("", s.listPods).Methods(http.MethodGet)
	pods.HandleFunc("/{name}", s.getPod).Methods(http.MethodGet)
	pods.HandleFunc("/{name}", s.updatePod).Methods(http.MethodPut)
	pods.HandleFunc("/{name}", s.deletePod).Methods(http.MethodDelete)

	services := s.router.PathPrefix("/api/v1/namespaces/{ns}/services").Subrouter()
	services.HandleFunc("", s.createService).Methods(http.MethodPost)
	services.HandleFunc("", s.listServices).Methods(http.MethodGet)
	services.HandleFunc("/{name}", s.getService).Methods(http.MethodGet)
	services.HandleFunc("/{name}", s.updateService).Methods(http.MethodPut)
	services.HandleFunc("/{name}", s.deleteService).Methods(http.MethodDelete)

	replicasets := s.router.PathPrefix("/api/apps/v1/namespaces/{ns}/replicasets").Subrouter()
	replicasets.HandleFunc("", s.createReplicaSet).Methods(http.MethodPost)
	replicasets.HandleFunc("", s.listReplicaSets).Methods(http.MethodGet)
	replicasets.HandleFunc("/{name}", s.getReplicaSet).Methods(http.MethodGet)
	replicasets.HandleFunc("/{name}", s.updateReplicaSet).Methods(http.MethodPut)
	replicasets.HandleFunc("/{name}", s.deleteReplicaSet).Methods(http.MethodDelete)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an apierrors.Kind to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apierrors.KindOf(err) {
	case apierrors.KindNotFound:
		status = http.StatusNotFound
	case apierrors.KindAlreadyExists:
		status = http.StatusConflict
	case apierrors.KindValidationError:
		status = http.StatusBadRequest
	case apierrors.KindRuntimeTransient, apierrors.KindRuntimeFatal:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func namespaceParam(r *http.Request) string {
	ns := mux.Vars(r)["ns"]
	if ns == "" {
		return "default"
	}
	return ns
}

func nameParam(r *http.Request) string {
	return mux.Vars(r)["name"]
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

type itemList struct {
	Items interface{} `json:"items"`
}
