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

// ServiceStore is the Service-kind view over the generic Store.
type ServiceStore struct {
	inner *Store[*corev1.Service]
}

func NewServiceStore() *ServiceStore {
	return &ServiceStore{inner: New[*corev1.Service]("Service")}
}

func (s *ServiceStore) Create(svc *corev1.Service) (*corev1.Service, error) {
	if err := config.Struct(svc); err != nil {
		return nil, newValidationError("Service", err)
	}
	svc.Kind = corev1.KindService
	if svc.Metadata.Namespace == "" {
		svc.Metadata.Namespace = corev1.DefaultNamespace
	}
	if svc.Spec.Type == "" {
		svc.Spec.Type = corev1.ServiceTypeClusterIP
	}
	for i := range svc.Spec.Ports {
		if svc.Spec.Ports[i].Protocol == "" {
			svc.Spec.Ports[i].Protocol = corev1.ProtocolTCP
		}
	}
	svc.Status = corev1.ServiceStatus{}
	return s.inner.Create(svc)
}

func (s *ServiceStore) Get(namespace, name string) (*corev1.Service, error) {
	return s.inner.Get(namespace, name)
}

func (s *ServiceStore) List(namespace string, sel map[string]string) []*corev1.Service {
	return s.inner.List(namespace, sel)
}

func (s *ServiceStore) Update(namespace, name string, spec corev1.ServiceSpec, labels map[string]string) (*corev1.Service, error) {
	candidate := &corev1.Service{Metadata: corev1.ObjectMeta{Name: name}, Spec: spec}
	if err := config.Struct(candidate); err != nil {
		return nil, newValidationError("Service", err)
	}
	return s.inner.mutate(namespace, name, func(current *corev1.Service) (*corev1.Service, error) {
		current.Spec = spec
		current.Metadata.Labels = labels
		return current, nil
	})
}

func (s *ServiceStore) UpdateStatus(namespace, name string, mutateStatus func(*corev1.ServiceStatus)) (*corev1.Service, error) {
	return s.inner.mutate(namespace, name, func(current *corev1.Service) (*corev1.Service, error) {
		mutateStatus(&current.Status)
		return current, nil
	})
}

func (s *ServiceStore) Delete(namespace, name string) error {
	return s.inner.Delete(namespace, name)
}

func (s *ServiceStore) Watch() (<-chan Event[*corev1.Service], func()) {
	return s.inner.Watch(64)
}
