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

// Package podmanager implements the Pod Lifecycle Manager: it
// drives each Pod towards a container that matches its spec, reacting to
// the store's watch feed and a periodic reconciliation tick, and recovers
// from a container that disappeared or exited out of band.
package podmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/config"
	"github.com/podctl/podctl/pkg/logger"
	"github.com/podctl/podctl/pkg/runtime"
	"github.com/podctl/podctl/pkg/store"
)

// Manager owns the Pending -> Running -> Succeeded/Failed state machine for
// every Pod in the store. Reconciliation is triggered by the store's watch
// feed and by a periodic tick that closes any gap a dropped event left; a
// per-key lock keeps at most one reconcile in flight for a given Pod at a
// time, so a slow podman call can never race its own retry.
type Manager struct {
	pods    *store.PodStore
	adapter runtime.Adapter
	l       logger.Logger

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	backoff map[string]time.Duration
}

func New(pods *store.PodStore, adapter runtime.Adapter, l logger.Logger) *Manager {
	return &Manager{
		pods:    pods,
		adapter: adapter,
		l:       l,
		locks:   make(map[string]*sync.Mutex),
		backoff: make(map[string]time.Duration),
	}
}

func podKey(namespace, name string) string { return namespace + "/" + name }

func (m *Manager) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Run drives the manager until ctx is cancelled: it consumes the Pod watch
// feed to trigger per-Pod reconciles, and a periodic tick nudges every Pod
// in case an event was dropped.
func (m *Manager) Run(ctx context.Context) {
	if _, err := m.adapter.EnsureNetwork(ctx); err != nil {
		m.l.Errorf("ensure network: %v", err)
	}

	events, cancel := m.pods.Watch()
	defer cancel()

	ticker := time.NewTicker(config.ReconcileTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.reconcileAsync(ctx, ev.Namespace, ev.Name)
		case <-ticker.C:
			for _, pod := range m.pods.ListIncludingTerminating("") {
				m.reconcileAsync(ctx, pod.Metadata.Namespace, pod.Metadata.Name)
			}
		}
	}
}

// reconcileAsync runs reconcile in its own goroutine so a slow container
// operation (podman run/inspect/stop) never blocks the watch/tick loop.
func (m *Manager) reconcileAsync(ctx context.Context, namespace, name string) {
	go func() {
		lock := m.lockFor(podKey(namespace, name))
		lock.Lock()
		defer lock.Unlock()
		if err := m.reconcile(ctx, namespace, name); err != nil {
			m.l.V(1).Infof("podmanager: reconcile %s/%s: %v", namespace, name, err)
		}
	}()
}

// reconcile is the idempotent per-Pod state transition function: given the
// current stored Pod and the runtime's view of its container, it makes at
// most one corrective call and returns.
func (m *Manager) reconcile(ctx context.Context, namespace, name string) error {
	pods := m.pods.ListIncludingTerminating(namespace)
	var pod *corev1.Pod
	for _, p := range pods {
		if p.Metadata.Name == name {
			pod = p
			break
		}
	}
	if pod == nil {
		return nil // already finalized
	}

	if pod.Metadata.DeletionTimestamp != nil {
		return m.reconcileDeleting(ctx, pod)
	}

	switch pod.Status.Phase {
	case corev1.PodPending:
		return m.reconcilePending(ctx, pod)
	case corev1.PodRunning:
		return m.reconcileRunning(ctx, pod)
	case corev1.PodSucceeded, corev1.PodFailed:
		return nil // terminal; nothing left for the manager to do
	default:
		return nil
	}
}

func (m *Manager) reconcilePending(ctx context.Context, pod *corev1.Pod) error {
	if m.inBackoff(pod) {
		return nil
	}

	name := runtime.PodContainerName(pod.Metadata.Namespace, pod.Metadata.Name)
	container := pod.Spec.Containers[0]

	runCtx, cancel := context.WithTimeout(ctx, config.ContainerStartTimeout)
	defer cancel()

	network, err := m.adapter.EnsureNetwork(runCtx)
	if err != nil {
		return m.markFailed(pod, "NetworkUnavailable", err.Error())
	}

	result, err := m.adapter.RunContainer(runCtx, name, container.Image, container.Env, runtime.PodLabels(pod), network)
	if err != nil {
		return m.handleRunFailure(pod, err)
	}

	_, err = m.pods.UpdateStatus(pod.Metadata.Namespace, pod.Metadata.Name, func(status *corev1.PodStatus) {
		status.Phase = corev1.PodRunning
		status.ContainerID = result.ContainerID
		status.PodIP = result.PodIP
		status.Reason = ""
		status.Message = ""
		status.NextRetryTime = nil
	})
	m.clearBackoff(pod)
	return err
}

func (m *Manager) handleRunFailure(pod *corev1.Pod, err error) error {
	reason, msg := "StartFailed", err.Error()
	if runErr, ok := err.(*runtime.RunError); ok {
		reason = string(runErr.Reason)
		msg = runErr.Message
	}

	if reason == string(runtime.ReasonImagePullFailed) {
		return m.markFailed(pod, reason, msg)
	}

	// NameConflict and anything else transient: back off and retry from
	// Pending rather than declaring the Pod Failed outright.
	delay := m.bumpBackoff(pod)
	next := time.Now().Add(delay)
	_, uerr := m.pods.UpdateStatus(pod.Metadata.Namespace, pod.Metadata.Name, func(status *corev1.PodStatus) {
		status.Reason = reason
		status.Message = msg
		status.NextRetryTime = &next
	})
	return uerr
}

func (m *Manager) reconcileRunning(ctx context.Context, pod *corev1.Pod) error {
	inspectCtx, cancel := context.WithTimeout(ctx, config.InspectTimeout)
	defer cancel()

	result, err := m.adapter.Inspect(inspectCtx, pod.Status.ContainerID)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", pod.Status.ContainerID, err)
	}

	switch result.State {
	case runtime.StateRunning:
		return nil
	case runtime.StateMissing:
		// Drift recovery: the container disappeared out of band. This Pod
		// is terminal; its owning ReplicaSet controller is responsible for
		// creating a replacement.
		_, err := m.pods.UpdateStatus(pod.Metadata.Namespace, pod.Metadata.Name, func(status *corev1.PodStatus) {
			status.Phase = corev1.PodFailed
			status.ContainerID = ""
			status.PodIP = ""
			status.Reason = "ContainerDisappeared"
			status.Message = "container no longer present at runtime"
		})
		return err
	case runtime.StateExited:
		phase := corev1.PodSucceeded
		reason := ""
		if result.ExitCode == nil || *result.ExitCode != 0 {
			phase = corev1.PodFailed
			reason = "NonZeroExit"
		}
		_, err := m.pods.UpdateStatus(pod.Metadata.Namespace, pod.Metadata.Name, func(status *corev1.PodStatus) {
			status.Phase = phase
			status.Reason = reason
		})
		m.adapter.StopAndRemove(ctx, pod.Status.ContainerID)
		return err
	default:
		return nil
	}
}

func (m *Manager) reconcileDeleting(ctx context.Context, pod *corev1.Pod) error {
	if pod.Status.ContainerID != "" {
		m.adapter.StopAndRemove(ctx, pod.Status.ContainerID)
	}
	m.pods.Finalize(pod.Metadata.Namespace, pod.Metadata.Name)

	k := podKey(pod.Metadata.Namespace, pod.Metadata.Name)
	m.mu.Lock()
	delete(m.backoff, k)
	m.mu.Unlock()
	return nil
}

func (m *Manager) markFailed(pod *corev1.Pod, reason, message string) error {
	_, err := m.pods.UpdateStatus(pod.Metadata.Namespace, pod.Metadata.Name, func(status *corev1.PodStatus) {
		status.Phase = corev1.PodFailed
		status.Reason = reason
		status.Message = message
	})
	return err
}

// inBackoff reports whether pod is still within its retry cooldown.
func (m *Manager) inBackoff(pod *corev1.Pod) bool {
	return pod.Status.NextRetryTime != nil && time.Now().Before(*pod.Status.NextRetryTime)
}

// bumpBackoff doubles the retry delay for this Pod, capped at
// config.BackoffCap, and returns the delay to apply next.
func (m *Manager) bumpBackoff(pod *corev1.Pod) time.Duration {
	k := podKey(pod.Metadata.Namespace, pod.Metadata.Name)
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.backoff[k]
	if !ok || cur <= 0 {
		cur = config.BackoffBase
	} else {
		cur *= 2
		if cur > config.BackoffCap {
			cur = config.BackoffCap
		}
	}
	m.backoff[k] = cur
	return cur
}

func (m *Manager) clearBackoff(pod *corev1.Pod) {
	k := podKey(pod.Metadata.Namespace, pod.Metadata.Name)
	m.mu.Lock()
	delete(m.backoff, k)
	m.mu.Unlock()
}
