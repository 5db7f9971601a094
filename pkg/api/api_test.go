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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/kind/pkg/log"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/logger"
	"github.com/podctl/podctl/pkg/store"
)

func newTestServer() *Server {
	l := logger.New(&bytes.Buffer{}, log.Level(0))
	return NewServer(store.NewAggregate(), l, func() bool { return true })
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer()
	rec := doRequest(s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndGetPod(t *testing.T) {
	s := newTestServer()
	pod := corev1.Pod{
		Metadata: corev1.ObjectMeta{Name: "web"},
		Spec:     corev1.PodSpec{Containers: []corev1.Container{{Name: "main", Image: "busybox"}}},
	}

	rec := doRequest(s, http.MethodPost, "/api/v1/namespaces/default/pods", pod)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/namespaces/default/pods/web", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got corev1.Pod
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "web", got.Metadata.Name)
	assert.Equal(t, corev1.PodPending, got.Status.Phase)
}

func TestCreatePodConflict(t *testing.T) {
	s := newTestServer()
	pod := corev1.Pod{
		Metadata: corev1.ObjectMeta{Name: "dup"},
		Spec:     corev1.PodSpec{Containers: []corev1.Container{{Name: "main", Image: "busybox"}}},
	}

	rec := doRequest(s, http.MethodPost, "/api/v1/namespaces/default/pods", pod)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/v1/namespaces/default/pods", pod)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetMissingPodNotFound(t *testing.T) {
	s := newTestServer()
	rec := doRequest(s, http.MethodGet, "/api/v1/namespaces/default/pods/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateReplicaSetValidationError(t *testing.T) {
	s := newTestServer()
	rs := corev1.ReplicaSet{
		Metadata: corev1.ObjectMeta{Name: "bad"},
		Spec: corev1.ReplicaSetSpec{
			Replicas: -1,
			Selector: corev1.Selector{"app": "x"},
			Template: corev1.PodTemplate{
				Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "main", Image: "busybox"}}},
			},
		},
	}
	rec := doRequest(s, http.MethodPost, "/api/apps/v1/namespaces/default/replicasets", rs)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePodEmptyContainersValidationError(t *testing.T) {
	s := newTestServer()
	pod := corev1.Pod{Metadata: corev1.ObjectMeta{Name: "empty"}}
	rec := doRequest(s, http.MethodPost, "/api/v1/namespaces/default/pods", pod)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePodThenListIsEmpty(t *testing.T) {
	s := newTestServer()
	pod := corev1.Pod{
		Metadata: corev1.ObjectMeta{Name: "gone"},
		Spec:     corev1.PodSpec{Containers: []corev1.Container{{Name: "main", Image: "busybox"}}},
	}
	require.Equal(t, http.StatusCreated, doRequest(s, http.MethodPost, "/api/v1/namespaces/default/pods", pod).Code)
	require.Equal(t, http.StatusOK, doRequest(s, http.MethodDelete, "/api/v1/namespaces/default/pods/gone", nil).Code)

	rec := doRequest(s, http.MethodGet, "/api/v1/namespaces/default/pods", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list itemList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Items)
}
