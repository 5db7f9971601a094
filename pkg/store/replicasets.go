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

// ReplicaSetStore is the ReplicaSet-kind view over the generic Store.
type ReplicaSetStore struct {
	inner *Store[*corev1.ReplicaSet]
}

func NewReplicaSetStore() *ReplicaSetStore {
	return &ReplicaSetStore{inner: New[*corev1.ReplicaSet]("ReplicaSet")}
}

func (s *ReplicaSetStore) Create(rs *corev1.ReplicaSet) (*corev1.ReplicaSet, error) {
	if err := config.Struct(rs); err != nil {
		return nil, newValidationError("ReplicaSet", err)
	}
	rs.Kind = corev1.KindReplicaSet
	if rs.Metadata.Namespace == "" {
		rs.Metadata.Namespace = corev1.DefaultNamespace
	}
	rs.Status = corev1.ReplicaSetStatus{}
	return s.inner.Create(rs)
}

func (s *ReplicaSetStore) Get(namespace, name string) (*corev1.ReplicaSet, error) {
	return s.inner.Get(namespace, name)
}

func (s *ReplicaSetStore) List(namespace string, sel map[string]string) []*corev1.ReplicaSet {
	return s.inner.List(namespace, sel)
}

func (s *ReplicaSetStore) ListIncludingTerminating(namespace string) []*corev1.ReplicaSet {
	return s.inner.ListIncludingTerminating(namespace)
}

func (s *ReplicaSetStore) Update(namespace, name string, spec corev1.ReplicaSetSpec, labels map[string]string) (*corev1.ReplicaSet, error) {
	candidate := &corev1.ReplicaSet{Metadata: corev1.ObjectMeta{Name: name}, Spec: spec}
	if err := config.Struct(candidate); err != nil {
		return nil, newValidationError("ReplicaSet", err)
	}
	return s.inner.mutate(namespace, name, func(current *corev1.ReplicaSet) (*corev1.ReplicaSet, error) {
		current.Spec = spec
		current.Metadata.Labels = labels
		return current, nil
	})
}

func (s *ReplicaSetStore) UpdateStatus(namespace, name string, mutateStatus func(*corev1.ReplicaSetStatus)) (*corev1.ReplicaSet, error) {
	return s.inner.mutate(namespace, name, func(current *corev1.ReplicaSet) (*corev1.ReplicaSet, error) {
		mutateStatus(&current.Status)
		return current, nil
	})
}

func (s *ReplicaSetStore) Delete(namespace, name string) error {
	return s.inner.Delete(namespace, name)
}

func (s *ReplicaSetStore) Finalize(namespace, name string) {
	s.inner.Finalize(namespace, name)
}

func (s *ReplicaSetStore) Watch() (<-chan Event[*corev1.ReplicaSet], func()) {
	return s.inner.Watch(64)
}
