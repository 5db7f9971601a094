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

// Package runtime defines the Runtime Adapter contract: the
// boundary between the control plane and the external container engine.
// Production wires Adapter to the Podman CLI (podman.go); tests wire it to
// an in-memory fake that simulates states, failures and timing (fake.go).
package runtime

import (
	"context"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
)

// ContainerState is the coarse state Inspect reports.
type ContainerState string

const (
	StateRunning ContainerState = "running"
	StateExited  ContainerState = "exited"
	StateMissing ContainerState = "missing"
)

// FailureReason distinguishes RunContainer's failure modes, so the Pod
// lifecycle manager can choose Failed vs retry.
type FailureReason string

const (
	ReasonImagePullFailed FailureReason = "ImagePullFailed"
	ReasonNameConflict    FailureReason = "NameConflict"
	ReasonOther           FailureReason = "Other"
)

// RunError is the error shape RunContainer returns on failure.
type RunError struct {
	Reason  FailureReason
	Message string
	Cause   error
}

func (e *RunError) Error() string {
	if e.Cause != nil {
		return e.Reason.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Reason.String() + ": " + e.Message
}

func (e *RunError) Unwrap() error { return e.Cause }

func (r FailureReason) String() string { return string(r) }

// RunResult is what a successful RunContainer returns.
type RunResult struct {
	ContainerID string
	PodIP       string
}

// InspectResult is what Inspect returns for a known container.
type InspectResult struct {
	State    ContainerState
	ExitCode *int
}

// Adapter is the store-facing contract consumed by the Pod lifecycle
// manager and the Service controller.
type Adapter interface {
	// EnsureNetwork is idempotent; it returns the name of the shared
	// user-defined bridge network all pods and load balancers attach to.
	EnsureNetwork(ctx context.Context) (string, error)

	// RunContainer starts a detached container attached to network,
	// tagged with labels (the orchestrator/pod and orchestrator/namespace
	// labels plus the Pod's own metadata labels).
	RunContainer(ctx context.Context, name, image string, env, labels map[string]string, network string) (RunResult, error)

	// Inspect reports the current state of containerID.
	Inspect(ctx context.Context, containerID string) (InspectResult, error)

	// StopAndRemove is best-effort and idempotent; it never fails fatally.
	StopAndRemove(ctx context.Context, containerID string)

	// StartLoadBalancer starts an L4 proxy container for a Service,
	// publishing each port on the host and forwarding to endpoints.
	StartLoadBalancer(ctx context.Context, serviceName string, ports []corev1.ServicePort, endpoints []corev1.Endpoint, network string) (string, error)

	// UpdateLoadBalancer pushes a new endpoint set, restarting the proxy
	// if the backend can't reconfigure live. Returns the load balancer's
	// container id, which changes if a restart was required.
	UpdateLoadBalancer(ctx context.Context, id string, endpoints []corev1.Endpoint) (string, error)

	// StopLoadBalancer is idempotent.
	StopLoadBalancer(ctx context.Context, id string)

	// ListOrchestratorContainers lists every container carrying the
	// orchestrator/pod or orchestrator/namespace label, for the startup
	// discard sweep.
	ListOrchestratorContainers(ctx context.Context) ([]string, error)
}

// PodContainerName is the deterministic container name for a Pod.
func PodContainerName(namespace, podName string) string {
	return namespace + "-" + podName
}

// LoadBalancerContainerName is the deterministic container name for a
// Service's load balancer.
func LoadBalancerContainerName(namespace, serviceName string) string {
	return namespace + "-svc-" + serviceName
}

// PodLabels builds the runtime labels a created Pod container is tagged
// with: the Pod's own metadata labels plus the orchestrator inventory
// labels.
func PodLabels(pod *corev1.Pod) map[string]string {
	out := make(map[string]string, len(pod.Metadata.Labels)+2)
	for k, v := range pod.Metadata.Labels {
		out[k] = v
	}
	out["orchestrator/pod"] = pod.Metadata.Name
	out["orchestrator/namespace"] = pod.Metadata.Namespace
	return out
}
