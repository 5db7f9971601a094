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

package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
)

// Fake is an in-memory Adapter substitute for tests: it simulates
// container state, name conflicts, image pull failures and an
// out-of-band container disappearance, without shelling out to anything.
type Fake struct {
	mu sync.Mutex

	network    string
	containers map[string]*fakeContainer
	nextIP     int

	// FailImages causes RunContainer to fail with ImagePullFailed for any
	// of the named images.
	FailImages map[string]bool
}

type fakeContainer struct {
	name     string
	image    string
	state    ContainerState
	exitCode *int
	ip       string
	lbPorts  []corev1.ServicePort
	lbEps    []corev1.Endpoint
	isLB     bool
}

func NewFake() *Fake {
	return &Fake{
		containers: make(map[string]*fakeContainer),
		FailImages: make(map[string]bool),
	}
}

func (f *Fake) EnsureNetwork(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.network == "" {
		f.network = "orchestrator-net"
	}
	return f.network, nil
}

func (f *Fake) RunContainer(_ context.Context, name, image string, _, _ map[string]string, _ string) (RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.containers[name]; exists {
		return RunResult{}, &RunError{Reason: ReasonNameConflict, Message: fmt.Sprintf("container %q already exists", name)}
	}
	if f.FailImages[image] {
		return RunResult{}, &RunError{Reason: ReasonImagePullFailed, Message: fmt.Sprintf("cannot pull image %q", image)}
	}

	f.nextIP++
	ip := fmt.Sprintf("10.89.0.%d", f.nextIP+1)
	id := uuid.NewString()
	f.containers[name] = &fakeContainer{name: name, image: image, state: StateRunning, ip: ip}
	// index by id too, for Inspect/StopAndRemove lookups.
	f.containers[id] = f.containers[name]
	return RunResult{ContainerID: id, PodIP: ip}, nil
}

func (f *Fake) Inspect(_ context.Context, containerID string) (InspectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[containerID]
	if !ok {
		return InspectResult{State: StateMissing}, nil
	}
	return InspectResult{State: c.state, ExitCode: c.exitCode}, nil
}

func (f *Fake) StopAndRemove(_ context.Context, containerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[containerID]
	if !ok {
		return
	}
	delete(f.containers, containerID)
	delete(f.containers, c.name)
}

func (f *Fake) StartLoadBalancer(_ context.Context, serviceName string, ports []corev1.ServicePort, endpoints []corev1.Endpoint, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.containers[id] = &fakeContainer{name: serviceName, state: StateRunning, lbPorts: ports, lbEps: endpoints, isLB: true}
	return id, nil
}

func (f *Fake) UpdateLoadBalancer(_ context.Context, id string, endpoints []corev1.Endpoint) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return "", fmt.Errorf("load balancer %q not found", id)
	}
	c.lbEps = endpoints
	return id, nil
}

func (f *Fake) StopLoadBalancer(ctx context.Context, id string) {
	f.StopAndRemove(ctx, id)
}

func (f *Fake) ListOrchestratorContainers(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	seen := make(map[string]bool)
	for k, c := range f.containers {
		if seen[c.name] {
			continue
		}
		seen[c.name] = true
		out = append(out, k)
	}
	return out, nil
}

// --- test-only simulation hooks, not part of the Adapter interface ---

// SimulateExit marks containerID as exited with the given code, as if the
// process inside it had finished.
func (f *Fake) SimulateExit(containerID string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[containerID]; ok {
		c.state = StateExited
		c.exitCode = &code
	}
}

// SimulateDisappear removes containerID without going through
// StopAndRemove, as if an operator killed it out of band.
func (f *Fake) SimulateDisappear(containerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[containerID]; ok {
		delete(f.containers, containerID)
		delete(f.containers, c.name)
	}
}

// LoadBalancerEndpoints returns the endpoint set currently recorded for a
// fake load balancer, for assertions in tests.
func (f *Fake) LoadBalancerEndpoints(id string) []corev1.Endpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[id]; ok {
		return append([]corev1.Endpoint(nil), c.lbEps...)
	}
	return nil
}
