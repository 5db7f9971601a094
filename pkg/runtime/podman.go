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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/logger"
)

// Podman backs Adapter with the `podman` CLI. It shells out to the binary
// the way a process-lifecycle manager shells out to component binaries,
// trading pid files for container IDs and a log directory for `podman
// inspect`/`podman logs`.
type Podman struct {
	binary string
	l      logger.Logger

	lbMu   sync.Mutex
	lbSpec map[string]loadBalancerSpec
}

// loadBalancerSpec is what StartLoadBalancer needs to recreate a load
// balancer container, remembered per container id so UpdateLoadBalancer
// can restart it with a fresh endpoint set.
type loadBalancerSpec struct {
	serviceName string
	ports       []corev1.ServicePort
	network     string
}

func NewPodman(l logger.Logger) *Podman {
	return &Podman{binary: "podman", l: l, lbSpec: make(map[string]loadBalancerSpec)}
}

var _ Adapter = &Podman{}

func (p *Podman) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return stdout.String(), fmt.Errorf("%s %s: %w: %s", p.binary, strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

func (p *Podman) EnsureNetwork(ctx context.Context) (string, error) {
	name := "orchestrator-net"
	if _, err := p.run(ctx, "network", "inspect", name); err == nil {
		return name, nil
	}
	if _, err := p.run(ctx, "network", "create", name); err != nil {
		return "", fmt.Errorf("ensure network %s: %w", name, err)
	}
	return name, nil
}

func (p *Podman) RunContainer(ctx context.Context, name, image string, env, labels map[string]string, network string) (RunResult, error) {
	args := []string{"run", "-d", "--name", name, "--network", network}
	for k, v := range env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	for k, v := range labels {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, image)

	out, err := p.run(ctx, args...)
	if err != nil {
		reason := ReasonOther
		lower := strings.ToLower(out + err.Error())
		switch {
		case strings.Contains(lower, "already in use") || strings.Contains(lower, "already exists"):
			reason = ReasonNameConflict
		case strings.Contains(lower, "pull") || strings.Contains(lower, "not found") || strings.Contains(lower, "manifest unknown"):
			reason = ReasonImagePullFailed
		}
		return RunResult{}, &RunError{Reason: reason, Message: "podman run failed", Cause: err}
	}
	containerID := strings.TrimSpace(out)

	ip, err := p.podIP(ctx, containerID, network)
	if err != nil {
		return RunResult{}, &RunError{Reason: ReasonOther, Message: "podman inspect (IP) failed", Cause: err}
	}
	return RunResult{ContainerID: containerID, PodIP: ip}, nil
}

type podmanInspectState struct {
	Status   string `json:"Status"`
	ExitCode int    `json:"ExitCode"`
	Running  bool   `json:"Running"`
}

type podmanInspectNetwork struct {
	IPAddress string `json:"IPAddress"`
}

type podmanInspectEntry struct {
	State           podmanInspectState                      `json:"State"`
	NetworkSettings struct {
		Networks map[string]podmanInspectNetwork `json:"Networks"`
	} `json:"NetworkSettings"`
}

func (p *Podman) podIP(ctx context.Context, containerID, network string) (string, error) {
	out, err := p.run(ctx, "inspect", containerID)
	if err != nil {
		return "", err
	}
	var entries []podmanInspectEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil || len(entries) == 0 {
		return "", fmt.Errorf("unexpected podman inspect output: %w", err)
	}
	if net, ok := entries[0].NetworkSettings.Networks[network]; ok {
		return net.IPAddress, nil
	}
	for _, net := range entries[0].NetworkSettings.Networks {
		return net.IPAddress, nil
	}
	return "", fmt.Errorf("container %s has no network attachment", containerID)
}

func (p *Podman) Inspect(ctx context.Context, containerID string) (InspectResult, error) {
	out, err := p.run(ctx, "inspect", containerID)
	if err != nil {
		return InspectResult{State: StateMissing}, nil
	}
	var entries []podmanInspectEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil || len(entries) == 0 {
		return InspectResult{State: StateMissing}, nil
	}
	st := entries[0].State
	switch {
	case st.Running:
		return InspectResult{State: StateRunning}, nil
	case st.Status == "exited":
		code := st.ExitCode
		return InspectResult{State: StateExited, ExitCode: &code}, nil
	default:
		return InspectResult{State: StateMissing}, nil
	}
}

func (p *Podman) StopAndRemove(ctx context.Context, containerID string) {
	if _, err := p.run(ctx, "stop", "-t", "5", containerID); err != nil {
		p.l.V(1).Infof("podman stop %s: %v (continuing to rm)", containerID, err)
	}
	if _, err := p.run(ctx, "rm", "-f", containerID); err != nil {
		p.l.V(1).Infof("podman rm %s: %v", containerID, err)
	}
}

// StartLoadBalancer runs a thin TCP proxy container (socat, one process
// per published port) forwarding each port to the current endpoint set.
func (p *Podman) StartLoadBalancer(ctx context.Context, serviceName string, ports []corev1.ServicePort, endpoints []corev1.Endpoint, network string) (string, error) {
	name := LoadBalancerContainerName(namespaceOf(serviceName), serviceName)
	args := []string{"run", "-d", "--name", name, "--network", network}
	for _, port := range ports {
		args = append(args, "-p", fmt.Sprintf("%d:%d", port.Port, port.Port))
	}
	args = append(args, "--label", "orchestrator/service="+serviceName)
	args = append(args, "docker.io/alpine/socat", "sh", "-c", buildSocatScript(ports, endpoints))

	out, err := p.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("start load balancer for %s: %w", serviceName, err)
	}
	id := strings.TrimSpace(out)

	p.lbMu.Lock()
	p.lbSpec[id] = loadBalancerSpec{serviceName: serviceName, ports: ports, network: network}
	p.lbMu.Unlock()

	return id, nil
}

// UpdateLoadBalancer restarts the proxy with the new endpoint set, since
// socat can't be reconfigured live, and returns the new container id.
func (p *Podman) UpdateLoadBalancer(ctx context.Context, id string, endpoints []corev1.Endpoint) (string, error) {
	p.lbMu.Lock()
	spec, ok := p.lbSpec[id]
	delete(p.lbSpec, id)
	p.lbMu.Unlock()
	if !ok {
		return "", fmt.Errorf("load balancer %s: no recorded spec to restart from", id)
	}

	p.StopAndRemove(ctx, id)
	return p.StartLoadBalancer(ctx, spec.serviceName, spec.ports, endpoints, spec.network)
}

func (p *Podman) StopLoadBalancer(ctx context.Context, id string) {
	p.lbMu.Lock()
	delete(p.lbSpec, id)
	p.lbMu.Unlock()
	p.StopAndRemove(ctx, id)
}

func (p *Podman) ListOrchestratorContainers(ctx context.Context) ([]string, error) {
	out, err := p.run(ctx, "ps", "-a", "--filter", "label=orchestrator/namespace", "--format", "{{.ID}}")
	if err != nil {
		return nil, fmt.Errorf("list orchestrator containers: %w", err)
	}
	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			ids = append(ids, line)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// buildSocatScript renders one socat TCP listener per port. Each listener
// forwards to the first endpoint whose target port matches the port's
// target port; traffic is not spread across the other matching endpoints.
// A port with no matching endpoint forwards to 127.0.0.1:1.
func buildSocatScript(ports []corev1.ServicePort, endpoints []corev1.Endpoint) string {
	var b strings.Builder
	for _, port := range ports {
		b.WriteString("socat TCP-LISTEN:" + strconv.Itoa(port.Port) + ",fork,reuseaddr ")
		target := "127.0.0.1:1"
		for _, ep := range endpoints {
			if ep.TargetPort == port.TargetPort {
				target = ep.PodIP + ":" + strconv.Itoa(ep.TargetPort)
				break
			}
		}
		b.WriteString("TCP:" + target + " & ")
	}
	b.WriteString("wait")
	return b.String()
}

// namespaceOf returns the part of serviceName before a "/", or the default
// namespace when there is none. pkg/controller/service passes the bare
// Service name, so load-balancer containers are named under the default
// namespace whatever namespace the Service is in.
func namespaceOf(serviceName string) string {
	if idx := strings.IndexByte(serviceName, '/'); idx >= 0 {
		return serviceName[:idx]
	}
	return corev1.DefaultNamespace
}
