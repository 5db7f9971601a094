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

// Package client is a thin REST client over the API surface,
// the counterpart the CLI's get/apply/delete subcommands talk through
// instead of holding a full generated Kubernetes clientset.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("orchestrator API returned %d: %s", e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &apiError{Status: resp.StatusCode, Body: string(payload)}
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, out)
}

func (c *Client) CreatePod(ctx context.Context, namespace string, pod *corev1.Pod) (*corev1.Pod, error) {
	var out corev1.Pod
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/namespaces/%s/pods", namespace), pod, &out)
	return &out, err
}

func (c *Client) GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	var out corev1.Pod
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/namespaces/%s/pods/%s", namespace, name), nil, &out)
	return &out, err
}

func (c *Client) ListPods(ctx context.Context, namespace string) ([]*corev1.Pod, error) {
	var out struct {
		Items []*corev1.Pod `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/namespaces/%s/pods", namespace), nil, &out)
	return out.Items, err
}

func (c *Client) DeletePod(ctx context.Context, namespace, name string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/namespaces/%s/pods/%s", namespace, name), nil, nil)
}

func (c *Client) CreateReplicaSet(ctx context.Context, namespace string, rs *corev1.ReplicaSet) (*corev1.ReplicaSet, error) {
	var out corev1.ReplicaSet
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/apps/v1/namespaces/%s/replicasets", namespace), rs, &out)
	return &out, err
}

func (c *Client) GetReplicaSet(ctx context.Context, namespace, name string) (*corev1.ReplicaSet, error) {
	var out corev1.ReplicaSet
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/apps/v1/namespaces/%s/replicasets/%s", namespace, name), nil, &out)
	return &out, err
}

func (c *Client) ListReplicaSets(ctx context.Context, namespace string) ([]*corev1.ReplicaSet, error) {
	var out struct {
		Items []*corev1.ReplicaSet `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/apps/v1/namespaces/%s/replicasets", namespace), nil, &out)
	return out.Items, err
}

func (c *Client) UpdateReplicaSet(ctx context.Context, namespace, name string, rs *corev1.ReplicaSet) (*corev1.ReplicaSet, error) {
	var out corev1.ReplicaSet
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/apps/v1/namespaces/%s/replicasets/%s", namespace, name), rs, &out)
	return &out, err
}

func (c *Client) DeleteReplicaSet(ctx context.Context, namespace, name string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/apps/v1/namespaces/%s/replicasets/%s", namespace, name), nil, nil)
}

func (c *Client) CreateService(ctx context.Context, namespace string, svc *corev1.Service) (*corev1.Service, error) {
	var out corev1.Service
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/namespaces/%s/services", namespace), svc, &out)
	return &out, err
}

func (c *Client) GetService(ctx context.Context, namespace, name string) (*corev1.Service, error) {
	var out corev1.Service
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/namespaces/%s/services/%s", namespace, name), nil, &out)
	return &out, err
}

func (c *Client) ListServices(ctx context.Context, namespace string) ([]*corev1.Service, error) {
	var out struct {
		Items []*corev1.Service `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/namespaces/%s/services", namespace), nil, &out)
	return out.Items, err
}

func (c *Client) DeleteService(ctx context.Context, namespace, name string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/namespaces/%s/services/%s", namespace, name), nil, nil)
}
