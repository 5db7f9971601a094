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

// Package v1 defines the resource envelope and the Pod, ReplicaSet and
// Service kinds that make up the orchestrator's data model.
package v1

import (
	"time"

	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
)

const DefaultNamespace = "default"

// Kind identifies the schema of a resource.
type Kind string

const (
	KindPod        Kind = "Pod"
	KindReplicaSet Kind = "ReplicaSet"
	KindService    Kind = "Service"
)

// OwnerReference points at the controller-owned parent of a resource, used
// for cascading deletion.
type OwnerReference struct {
	Kind       Kind      `json:"kind" yaml:"kind"`
	Name       string    `json:"name" yaml:"name"`
	UID        types.UID `json:"uid" yaml:"uid"`
	Controller bool      `json:"controller" yaml:"controller"`
}

// Condition is a single observed aspect of a resource's status, in the
// shape used throughout the Kubernetes controller ecosystem.
type Condition struct {
	Type               string    `json:"type" yaml:"type"`
	Status             string    `json:"status" yaml:"status"`
	Reason             string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message            string    `json:"message,omitempty" yaml:"message,omitempty"`
	LastTransitionTime time.Time `json:"lastTransitionTime" yaml:"lastTransitionTime"`
}

// ObjectMeta is the envelope shared by every resource kind.
type ObjectMeta struct {
	Name              string            `json:"name" yaml:"name" validate:"required"`
	Namespace         string            `json:"namespace" yaml:"namespace"`
	UID               types.UID         `json:"uid,omitempty" yaml:"uid,omitempty"`
	Labels            map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	OwnerReferences   []OwnerReference  `json:"ownerReferences,omitempty" yaml:"ownerReferences,omitempty"`
	CreationTimestamp time.Time         `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
	DeletionTimestamp *time.Time        `json:"deletionTimestamp,omitempty" yaml:"deletionTimestamp,omitempty"`
}

// LabelsSet adapts Labels to apimachinery's labels.Labels so selectors
// built from the same package can be evaluated against it.
func (m ObjectMeta) LabelsSet() labels.Set {
	return labels.Set(m.Labels)
}

// ControllerOwner returns the owner reference with Controller: true, if any.
func (m ObjectMeta) ControllerOwner() (OwnerReference, bool) {
	for _, ref := range m.OwnerReferences {
		if ref.Controller {
			return ref, true
		}
	}
	return OwnerReference{}, false
}

// HasOwner reports whether m carries an owner reference to the given uid.
func (m ObjectMeta) HasOwner(uid types.UID) bool {
	for _, ref := range m.OwnerReferences {
		if ref.UID == uid {
			return true
		}
	}
	return false
}

// Selector is a label-mapping predicate, as used by ReplicaSet.Spec.Selector
// and Service.Spec.Selector. Empty selectors match nothing.
type Selector map[string]string

// Matches reports whether every key in s is present in target with an equal value.
func (s Selector) Matches(target map[string]string) bool {
	if len(s) == 0 {
		return false
	}
	return labels.Set(s).AsSelector().Matches(labels.Set(target))
}

// AsLabelsSelector exposes the selector as an apimachinery labels.Selector.
func (s Selector) AsLabelsSelector() labels.Selector {
	return labels.Set(s).AsSelector()
}

// PodPhase is the observed lifecycle phase of a Pod.
type PodPhase string

const (
	PodPending   PodPhase = "Pending"
	PodRunning   PodPhase = "Running"
	PodSucceeded PodPhase = "Succeeded"
	PodFailed    PodPhase = "Failed"
	PodUnknown   PodPhase = "Unknown"
)

// Terminal reports whether the phase will never transition further on its own.
func (p PodPhase) Terminal() bool {
	return p == PodSucceeded || p == PodFailed
}

// Container is the single container run inside a Pod.
type Container struct {
	Name  string            `json:"name" yaml:"name" validate:"required"`
	Image string            `json:"image" yaml:"image" validate:"required"`
	Env   map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// PodSpec is the declarative desired state of a Pod.
type PodSpec struct {
	Containers []Container `json:"containers" yaml:"containers" validate:"required,len=1,dive"`
}

// PodStatus is the observed state of a Pod, server-managed.
type PodStatus struct {
	Phase         PodPhase    `json:"phase" yaml:"phase"`
	PodIP         string      `json:"podIP,omitempty" yaml:"podIP,omitempty"`
	ContainerID   string      `json:"containerID,omitempty" yaml:"containerID,omitempty"`
	Reason        string      `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message       string      `json:"message,omitempty" yaml:"message,omitempty"`
	Conditions    []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	NextRetryTime *time.Time  `json:"-" yaml:"-"`
}

// Pod is a single-container workload scheduled onto the runtime.
type Pod struct {
	APIVersion string     `json:"apiVersion" yaml:"apiVersion"`
	Kind       Kind       `json:"kind" yaml:"kind"`
	Metadata   ObjectMeta `json:"metadata" yaml:"metadata"`
	Spec       PodSpec    `json:"spec" yaml:"spec" validate:"required"`
	Status     PodStatus  `json:"status" yaml:"status"`
}

// PodTemplate is the embedded Pod template carried by a ReplicaSet.
type PodTemplate struct {
	Metadata ObjectMeta `json:"metadata" yaml:"metadata" validate:"-"`
	Spec     PodSpec    `json:"spec" yaml:"spec" validate:"required"`
}

// ReplicaSetSpec is the declarative desired state of a ReplicaSet.
type ReplicaSetSpec struct {
	Replicas int         `json:"replicas" yaml:"replicas" validate:"gte=0"`
	Selector Selector    `json:"selector" yaml:"selector" validate:"required,min=1"`
	Template PodTemplate `json:"template" yaml:"template" validate:"required"`
}

// ReplicaSetStatus is the observed state of a ReplicaSet.
type ReplicaSetStatus struct {
	Replicas      int         `json:"replicas" yaml:"replicas"`
	ReadyReplicas int         `json:"readyReplicas" yaml:"readyReplicas"`
	Conditions    []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// ReplicaSet maintains a count of selector-matched Pods.
type ReplicaSet struct {
	APIVersion string           `json:"apiVersion" yaml:"apiVersion"`
	Kind       Kind             `json:"kind" yaml:"kind"`
	Metadata   ObjectMeta       `json:"metadata" yaml:"metadata"`
	Spec       ReplicaSetSpec   `json:"spec" yaml:"spec" validate:"required"`
	Status     ReplicaSetStatus `json:"status" yaml:"status"`
}

// Protocol is the transport protocol of a ServicePort. TCP is the only one
// this system supports.
type Protocol string

const ProtocolTCP Protocol = "TCP"

// ServicePort maps a host/cluster port onto a Pod's container port.
type ServicePort struct {
	Protocol   Protocol `json:"protocol" yaml:"protocol"`
	Port       int      `json:"port" yaml:"port" validate:"gt=0,lte=65535"`
	TargetPort int      `json:"targetPort" yaml:"targetPort" validate:"gt=0,lte=65535"`
}

// ServiceType mirrors the Kubernetes ServiceType enum; this system only
// implements ClusterIP semantics with the LB always exposed on the host.
type ServiceType string

const ServiceTypeClusterIP ServiceType = "ClusterIP"

// ServiceSpec is the declarative desired state of a Service.
type ServiceSpec struct {
	Selector Selector      `json:"selector" yaml:"selector" validate:"required,min=1"`
	Ports    []ServicePort `json:"ports" yaml:"ports" validate:"required,min=1,dive"`
	Type     ServiceType   `json:"type" yaml:"type"`
}

// Endpoint is a single (podIP, targetPort) pair backing a Service.
type Endpoint struct {
	PodIP      string `json:"podIP" yaml:"podIP"`
	TargetPort int    `json:"targetPort" yaml:"targetPort"`
}

// ServiceStatus is the observed state of a Service.
type ServiceStatus struct {
	Endpoints       []Endpoint  `json:"endpoints" yaml:"endpoints"`
	LoadBalancerID  string      `json:"loadBalancerID,omitempty" yaml:"loadBalancerID,omitempty"`
	Conditions      []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Service exposes a stable endpoint set for selector-matched Pods.
type Service struct {
	APIVersion string        `json:"apiVersion" yaml:"apiVersion"`
	Kind       Kind          `json:"kind" yaml:"kind"`
	Metadata   ObjectMeta    `json:"metadata" yaml:"metadata"`
	Spec       ServiceSpec   `json:"spec" yaml:"spec" validate:"required"`
	Status     ServiceStatus `json:"status" yaml:"status"`
}
