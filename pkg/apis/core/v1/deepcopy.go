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

package v1

// GetMeta and DeepCopy satisfy store.Resource[T] for every kind, keeping
// the store's locking generic while letting each kind own its status
// shape. Deep copies exist so a caller mutating a returned object can
// never race a concurrent write inside the store.

func (m ObjectMeta) deepCopy() ObjectMeta {
	out := m
	if m.Labels != nil {
		out.Labels = make(map[string]string, len(m.Labels))
		for k, v := range m.Labels {
			out.Labels[k] = v
		}
	}
	if m.OwnerReferences != nil {
		out.OwnerReferences = append([]OwnerReference(nil), m.OwnerReferences...)
	}
	if m.DeletionTimestamp != nil {
		t := *m.DeletionTimestamp
		out.DeletionTimestamp = &t
	}
	return out
}

func copyConditions(in []Condition) []Condition {
	if in == nil {
		return nil
	}
	return append([]Condition(nil), in...)
}

func (p *Pod) GetMeta() *ObjectMeta { return &p.Metadata }

func (p *Pod) DeepCopy() *Pod {
	if p == nil {
		return nil
	}
	out := *p
	out.Metadata = p.Metadata.deepCopy()
	out.Spec.Containers = make([]Container, len(p.Spec.Containers))
	for i, c := range p.Spec.Containers {
		cc := c
		if c.Env != nil {
			cc.Env = make(map[string]string, len(c.Env))
			for k, v := range c.Env {
				cc.Env[k] = v
			}
		}
		out.Spec.Containers[i] = cc
	}
	out.Status.Conditions = copyConditions(p.Status.Conditions)
	if p.Status.NextRetryTime != nil {
		t := *p.Status.NextRetryTime
		out.Status.NextRetryTime = &t
	}
	return &out
}

func (r *ReplicaSet) GetMeta() *ObjectMeta { return &r.Metadata }

func (r *ReplicaSet) DeepCopy() *ReplicaSet {
	if r == nil {
		return nil
	}
	out := *r
	out.Metadata = r.Metadata.deepCopy()
	out.Spec.Selector = cloneSelector(r.Spec.Selector)
	out.Spec.Template.Metadata = r.Spec.Template.Metadata.deepCopy()
	out.Spec.Template.Spec.Containers = append([]Container(nil), r.Spec.Template.Spec.Containers...)
	for i, c := range out.Spec.Template.Spec.Containers {
		if c.Env != nil {
			env := make(map[string]string, len(c.Env))
			for k, v := range c.Env {
				env[k] = v
			}
			out.Spec.Template.Spec.Containers[i].Env = env
		}
	}
	out.Status.Conditions = copyConditions(r.Status.Conditions)
	return &out
}

func (svc *Service) GetMeta() *ObjectMeta { return &svc.Metadata }

func (svc *Service) DeepCopy() *Service {
	if svc == nil {
		return nil
	}
	out := *svc
	out.Metadata = svc.Metadata.deepCopy()
	out.Spec.Selector = cloneSelector(svc.Spec.Selector)
	out.Spec.Ports = append([]ServicePort(nil), svc.Spec.Ports...)
	out.Status.Endpoints = append([]Endpoint(nil), svc.Status.Endpoints...)
	out.Status.Conditions = copyConditions(svc.Status.Conditions)
	return &out
}

func cloneSelector(s Selector) Selector {
	if s == nil {
		return nil
	}
	out := make(Selector, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
