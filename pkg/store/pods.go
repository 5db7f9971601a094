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

package store

import (
	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/config"
)

// PodStore is the Pod-kind view over the generic Store, adding the
// status-preservation semantics Update requires and the internal
// UpdateStatus path reserved for controllers.
type PodStore struct {
	inner *Store[*corev1.Pod]
}

func NewPodStore() *PodStore {
	return &PodStore{inner: New[*corev1.Pod]("Pod")}
}

func (s *PodStore) Create(pod *corev1.Pod) (*corev1.Pod, error) {
	if err := config.Struct(pod); err != nil {
		return nil, newValidationError("Pod", err)
	}
	pod.Kind = corev1.KindPod
	if pod.Metadata.Namespace == "" {
		pod.Metadata.Namespace = corev1.DefaultNamespace
	}
	pod.Status = corev1.PodStatus{Phase: corev1.PodPending}
	return s.inner.Create(pod)
}

func (s *PodStore) Get(namespace, name string) (*corev1.Pod, error) {
	return s.inner.Get(namespace, name)
}

func (s *PodStore) List(namespace string, sel map[string]string) []*corev1.Pod {
	return s.inner.List(namespace, sel)
}

func (s *PodStore) ListIncludingTerminating(namespace string) []*corev1.Pod {
	return s.inner.ListIncludingTerminating(namespace)
}

// Update replaces spec and labels, preserving uid/creationTimestamp/status.
func (s *PodStore) Update(namespace, name string, spec corev1.PodSpec, labels map[string]string) (*corev1.Pod, error) {
	candidate := &corev1.Pod{Metadata: corev1.ObjectMeta{Name: name}, Spec: spec}
	if err := config.Struct(candidate); err != nil {
		return nil, newValidationError("Pod", err)
	}
	return s.inner.mutate(namespace, name, func(current *corev1.Pod) (*corev1.Pod, error) {
		current.Spec = spec
		current.Metadata.Labels = labels
		return current, nil
	})
}

// UpdateStatus replaces status only; used by the Pod lifecycle manager.
func (s *PodStore) UpdateStatus(namespace, name string, mutateStatus func(*corev1.PodStatus)) (*corev1.Pod, error) {
	return s.inner.mutate(namespace, name, func(current *corev1.Pod) (*corev1.Pod, error) {
		mutateStatus(&current.Status)
		return current, nil
	})
}

// ClearControllerOwner drops the controller owner reference from a Pod,
// used by the ReplicaSet controller to release a Pod that no longer
// matches its selector without deleting it.
func (s *PodStore) ClearControllerOwner(namespace, name string) (*corev1.Pod, error) {
	return s.inner.mutate(namespace, name, func(current *corev1.Pod) (*corev1.Pod, error) {
		kept := current.Metadata.OwnerReferences[:0]
		for _, ref := range current.Metadata.OwnerReferences {
			if !ref.Controller {
				kept = append(kept, ref)
			}
		}
		current.Metadata.OwnerReferences = kept
		return current, nil
	})
}

func (s *PodStore) Delete(namespace, name string) error {
	return s.inner.Delete(namespace, name)
}

func (s *PodStore) Finalize(namespace, name string) {
	s.inner.Finalize(namespace, name)
}

func (s *PodStore) Watch() (<-chan Event[*corev1.Pod], func()) {
	return s.inner.Watch(128)
}
