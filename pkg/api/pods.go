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

package api

import (
	"net/http"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
)

func (s *Server) createPod(w http.ResponseWriter, r *http.Request) {
	var pod corev1.Pod
	if err := decodeBody(r, &pod); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	pod.Metadata.Namespace = namespaceParam(r)

	created, err := s.store.Pods.Create(&pod)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listPods(w http.ResponseWriter, r *http.Request) {
	items := s.store.Pods.List(namespaceParam(r), nil)
	writeJSON(w, http.StatusOK, itemList{Items: items})
}

func (s *Server) getPod(w http.ResponseWriter, r *http.Request) {
	pod, err := s.store.Pods.Get(namespaceParam(r), nameParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}

func (s *Server) updatePod(w http.ResponseWriter, r *http.Request) {
	var body corev1.Pod
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	updated, err := s.store.Pods.Update(namespaceParam(r), nameParam(r), body.Spec, body.Metadata.Labels)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deletePod(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Pods.Delete(namespaceParam(r), nameParam(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
