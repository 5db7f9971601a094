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

// Package replicaset implements the ReplicaSet Controller: it
// keeps the count of selector-matched, non-terminal Pods owned by a
// ReplicaSet equal to spec.replicas.
package replicaset

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/store"
)

// Controller reconciles every ReplicaSet in the Aggregate against its owned
// Pods. It has no background goroutine of its own; the engine (pkg/engine)
// calls Reconcile per key on its own schedule.
type Controller struct {
	rs   *store.ReplicaSetStore
	pods *store.PodStore
}

func New(rs *store.ReplicaSetStore, pods *store.PodStore) *Controller {
	return &Controller{rs: rs, pods: pods}
}

// Reconcile runs the full per-ReplicaSet algorithm once. It is idempotent:
// run again on an unchanged world, it makes no store writes beyond the
// status refresh.
func (c *Controller) Reconcile(namespace, name string) error {
	rsList := c.rs.ListIncludingTerminating(namespace)
	var rs *corev1.ReplicaSet
	for _, r := range rsList {
		if r.Metadata.Name == name {
			rs = r
			break
		}
	}
	if rs == nil {
		return nil // deleted; nothing to reconcile
	}

	if rs.Metadata.DeletionTimestamp != nil {
		return c.cascadeDelete(rs)
	}

	owned := c.ownedPods(rs)

	// Release Pods that no longer match the selector;
	// they stay in the store, just un-owned.
	var kept []*corev1.Pod
	for _, p := range owned {
		if rs.Spec.Selector.Matches(p.Metadata.Labels) {
			kept = append(kept, p)
			continue
		}
		if err := c.release(p); err != nil {
			return fmt.Errorf("release pod %s: %w", p.Metadata.Name, err)
		}
	}
	owned = kept

	// Reap terminal Pods before counting, so they always provoke a
	// replacement on this same tick.
	owned = c.reapTerminal(owned)

	actual := 0
	for _, p := range owned {
		if !p.Status.Phase.Terminal() {
			actual++
		}
	}
	desired := rs.Spec.Replicas

	switch {
	case actual < desired:
		if err := c.scaleUp(rs, desired-actual); err != nil {
			return err
		}
	case actual > desired:
		if err := c.scaleDown(owned, actual-desired); err != nil {
			return err
		}
	}

	return c.updateStatus(rs, owned)
}

// ownedPods returns the Pods in rs's namespace whose ownerReferences name
// rs's uid, including ones mid-deletion so status accounting stays honest.
func (c *Controller) ownedPods(rs *corev1.ReplicaSet) []*corev1.Pod {
	var out []*corev1.Pod
	for _, p := range c.pods.ListIncludingTerminating(rs.Metadata.Namespace) {
		if p.Metadata.HasOwner(rs.Metadata.UID) {
			out = append(out, p)
		}
	}
	return out
}

func (c *Controller) release(p *corev1.Pod) error {
	_, err := c.pods.ClearControllerOwner(p.Metadata.Namespace, p.Metadata.Name)
	return err
}

// reapTerminal deletes Failed/Succeeded owned Pods and returns the
// remaining set.
func (c *Controller) reapTerminal(owned []*corev1.Pod) []*corev1.Pod {
	var kept []*corev1.Pod
	for _, p := range owned {
		if p.Status.Phase.Terminal() && p.Metadata.DeletionTimestamp == nil {
			_ = c.pods.Delete(p.Metadata.Namespace, p.Metadata.Name)
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func (c *Controller) scaleUp(rs *corev1.ReplicaSet, count int) error {
	for i := 0; i < count; i++ {
		if err := c.createOne(rs); err != nil {
			return err
		}
	}
	return nil
}

// createOne creates a single Pod from rs.Spec.Template, retrying the
// <rsName>-<short-random> name up to 5 times on collision.
func (c *Controller) createOne(rs *corev1.ReplicaSet) error {
	const maxAttempts = 5
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		name := fmt.Sprintf("%s-%s", rs.Metadata.Name, shortRandom())
		pod := &corev1.Pod{
			Metadata: corev1.ObjectMeta{
				Name:      name,
				Namespace: rs.Metadata.Namespace,
				Labels:    cloneLabels(rs.Spec.Template.Metadata.Labels),
				OwnerReferences: []corev1.OwnerReference{{
					Kind:       corev1.KindReplicaSet,
					Name:       rs.Metadata.Name,
					UID:        rs.Metadata.UID,
					Controller: true,
				}},
			},
			Spec: rs.Spec.Template.Spec,
		}
		_, err := c.pods.Create(pod)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("create pod for replicaset %s after %d attempts: %w", rs.Metadata.Name, maxAttempts, lastErr)
}

// scaleDown deletes count owned Pods, applying a deterministic tie-break:
// Pending before Running, most-recently-created first within a phase, name
// ascending to break remaining ties.
func (c *Controller) scaleDown(owned []*corev1.Pod, count int) error {
	candidates := make([]*corev1.Pod, 0, len(owned))
	for _, p := range owned {
		if !p.Status.Phase.Terminal() {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := candidates[i], candidates[j]
		ri, rj := phaseRank(pi.Status.Phase), phaseRank(pj.Status.Phase)
		if ri != rj {
			return ri < rj
		}
		if !pi.Metadata.CreationTimestamp.Equal(pj.Metadata.CreationTimestamp) {
			return pi.Metadata.CreationTimestamp.After(pj.Metadata.CreationTimestamp)
		}
		return pi.Metadata.Name < pj.Metadata.Name
	})

	for i := 0; i < count && i < len(candidates); i++ {
		if err := c.pods.Delete(candidates[i].Metadata.Namespace, candidates[i].Metadata.Name); err != nil {
			return err
		}
	}
	return nil
}

// phaseRank orders Pending ahead of Running for deletion preference.
func phaseRank(phase corev1.PodPhase) int {
	if phase == corev1.PodPending {
		return 0
	}
	return 1
}

func (c *Controller) updateStatus(rs *corev1.ReplicaSet, owned []*corev1.Pod) error {
	replicas, ready := 0, 0
	for _, p := range owned {
		if !p.Status.Phase.Terminal() {
			replicas++
		}
		if p.Status.Phase == corev1.PodRunning {
			ready++
		}
	}
	_, err := c.rs.UpdateStatus(rs.Metadata.Namespace, rs.Metadata.Name, func(status *corev1.ReplicaSetStatus) {
		status.Replicas = replicas
		status.ReadyReplicas = ready
	})
	return err
}

// cascadeDelete removes every owned Pod, then finalizes the ReplicaSet
// itself once none remain.
func (c *Controller) cascadeDelete(rs *corev1.ReplicaSet) error {
	owned := c.ownedPods(rs)
	remaining := 0
	for _, p := range owned {
		if p.Metadata.DeletionTimestamp == nil {
			if err := c.pods.Delete(p.Metadata.Namespace, p.Metadata.Name); err != nil {
				return err
			}
		}
		remaining++
	}
	if remaining == 0 {
		c.rs.Finalize(rs.Metadata.Namespace, rs.Metadata.Name)
	}
	return nil
}

func shortRandom() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func cloneLabels(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
