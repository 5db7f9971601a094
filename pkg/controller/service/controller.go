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

// Package service implements the Service Controller: it keeps
// a Service's status.endpoints in step with Running, selector-matched Pods
// and programs the load balancer through the Runtime Adapter.
package service

import (
	"context"
	"reflect"
	"sort"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/config"
	"github.com/podctl/podctl/pkg/runtime"
	"github.com/podctl/podctl/pkg/store"
)

// Controller reconciles every Service in the Aggregate against the current
// Pod population. Selection is scoped to the Service's own namespace; Pods
// in other namespaces never back a Service's endpoints.
type Controller struct {
	svc     *store.ServiceStore
	pods    *store.PodStore
	adapter runtime.Adapter

	// lastPorts remembers the port list last used to (re)start each
	// Service's load balancer, so a port change can be distinguished from
	// a pure endpoint change.
	lastPorts map[string][]corev1.ServicePort
}

func New(svc *store.ServiceStore, pods *store.PodStore, adapter runtime.Adapter) *Controller {
	return &Controller{svc: svc, pods: pods, adapter: adapter, lastPorts: make(map[string][]corev1.ServicePort)}
}

func (c *Controller) Reconcile(ctx context.Context, namespace, name string) error {
	svc, err := c.svc.Get(namespace, name)
	if err != nil {
		return nil
	}

	key := namespace + "/" + name

	if svc.Metadata.DeletionTimestamp != nil {
		if svc.Status.LoadBalancerID != "" {
			stopCtx, cancel := context.WithTimeout(ctx, config.ContainerStopTimeout)
			c.adapter.StopLoadBalancer(stopCtx, svc.Status.LoadBalancerID)
			cancel()
		}
		delete(c.lastPorts, key)
		c.svc.Finalize(namespace, name)
		return nil
	}

	endpoints := c.computeEndpoints(svc)

	if svc.Status.LoadBalancerID == "" {
		runCtx, cancel := context.WithTimeout(ctx, config.ContainerStartTimeout)
		defer cancel()
		network, err := c.adapter.EnsureNetwork(runCtx)
		if err != nil {
			return err
		}
		id, err := c.adapter.StartLoadBalancer(runCtx, svc.Metadata.Name, svc.Spec.Ports, endpoints, network)
		if err != nil {
			return err
		}
		c.lastPorts[key] = svc.Spec.Ports
		_, err = c.svc.UpdateStatus(namespace, name, func(status *corev1.ServiceStatus) {
			status.LoadBalancerID = id
			status.Endpoints = endpoints
		})
		return err
	}

	if portsChanged(c.lastPorts[key], svc.Spec.Ports) {
		stopCtx, cancel := context.WithTimeout(ctx, config.ContainerStopTimeout)
		c.adapter.StopLoadBalancer(stopCtx, svc.Status.LoadBalancerID)
		cancel()

		runCtx, cancel2 := context.WithTimeout(ctx, config.ContainerStartTimeout)
		defer cancel2()
		network, err := c.adapter.EnsureNetwork(runCtx)
		if err != nil {
			return err
		}
		id, err := c.adapter.StartLoadBalancer(runCtx, svc.Metadata.Name, svc.Spec.Ports, endpoints, network)
		if err != nil {
			return err
		}
		c.lastPorts[key] = svc.Spec.Ports
		_, err = c.svc.UpdateStatus(namespace, name, func(status *corev1.ServiceStatus) {
			status.LoadBalancerID = id
			status.Endpoints = endpoints
		})
		return err
	}

	if endpointsEqual(svc.Status.Endpoints, endpoints) {
		return nil
	}

	updateCtx, cancel := context.WithTimeout(ctx, config.ContainerStartTimeout)
	defer cancel()
	newID, err := c.adapter.UpdateLoadBalancer(updateCtx, svc.Status.LoadBalancerID, endpoints)
	if err != nil {
		return err
	}
	_, err = c.svc.UpdateStatus(namespace, name, func(status *corev1.ServiceStatus) {
		status.LoadBalancerID = newID
		status.Endpoints = endpoints
	})
	return err
}

// computeEndpoints selects Running, selector-matched Pods in the Service's
// namespace and crosses each one with every declared port.
func (c *Controller) computeEndpoints(svc *corev1.Service) []corev1.Endpoint {
	var endpoints []corev1.Endpoint
	for _, p := range c.pods.List(svc.Metadata.Namespace, nil) {
		if p.Status.Phase != corev1.PodRunning || p.Status.PodIP == "" {
			continue
		}
		if !svc.Spec.Selector.Matches(p.Metadata.Labels) {
			continue
		}
		for _, port := range svc.Spec.Ports {
			endpoints = append(endpoints, corev1.Endpoint{PodIP: p.Status.PodIP, TargetPort: port.TargetPort})
		}
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].PodIP != endpoints[j].PodIP {
			return endpoints[i].PodIP < endpoints[j].PodIP
		}
		return endpoints[i].TargetPort < endpoints[j].TargetPort
	})
	return endpoints
}

func portsChanged(old, next []corev1.ServicePort) bool {
	return !reflect.DeepEqual(old, next)
}

func endpointsEqual(a, b []corev1.Endpoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
