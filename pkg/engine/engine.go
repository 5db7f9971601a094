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

// Package engine implements the Reconciliation Engine: a
// per-key work queue dispatch shared by the ReplicaSet and Service
// controllers, giving each object at most one pending wakeup and at most
// one in-flight reconcile at a time, with a periodic tick closing any gap
// a dropped watch event left.
//
// The Pod Lifecycle Manager (pkg/podmanager) drives its own per-Pod
// state machine and backoff directly off Pod status; this
// engine multiplexes the two controllers that sit above it.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"k8s.io/client-go/util/workqueue"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/config"
	"github.com/podctl/podctl/pkg/controller/replicaset"
	"github.com/podctl/podctl/pkg/controller/service"
	"github.com/podctl/podctl/pkg/logger"
	"github.com/podctl/podctl/pkg/store"
)

// maxRequeues is the number of consecutive failures a key tolerates before
// the engine gives up on this attempt and records a status condition,
// rather than retrying forever at the backoff cap.
const maxRequeues = 5

const workersPerKind = 2

// Engine multiplexes the ReplicaSet and Service controllers over their own
// per-kind work queues.
type Engine struct {
	aggregate *store.Aggregate
	rs        *replicaset.Controller
	svc       *service.Controller
	l         logger.Logger
}

func New(aggregate *store.Aggregate, rs *replicaset.Controller, svc *service.Controller, l logger.Logger) *Engine {
	return &Engine{aggregate: aggregate, rs: rs, svc: svc, l: l}
}

// Run blocks until ctx is cancelled, driving both controllers concurrently.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		runKindQueue(ctx, e.l, "ReplicaSet",
			e.aggregate.ReplicaSets.Watch,
			func() []*corev1.ReplicaSet { return e.aggregate.ReplicaSets.ListIncludingTerminating("") },
			e.rs.Reconcile,
			e.recordReplicaSetFailure,
		)
	}()

	go func() {
		defer wg.Done()
		runKindQueue(ctx, e.l, "Service",
			e.aggregate.Services.Watch,
			func() []*corev1.Service { return e.aggregate.Services.List("", nil) },
			func(namespace, name string) error { return e.svc.Reconcile(ctx, namespace, name) },
			e.recordServiceFailure,
		)
	}()

	wg.Wait()
}

func (e *Engine) recordReplicaSetFailure(namespace, name, reason, message string) {
	_, err := e.aggregate.ReplicaSets.UpdateStatus(namespace, name, func(status *corev1.ReplicaSetStatus) {
		status.Conditions = appendCondition(status.Conditions, reason, message)
	})
	if err != nil {
		e.l.V(1).Infof("engine: recording condition on ReplicaSet %s/%s: %v", namespace, name, err)
	}
}

func (e *Engine) recordServiceFailure(namespace, name, reason, message string) {
	_, err := e.aggregate.Services.UpdateStatus(namespace, name, func(status *corev1.ServiceStatus) {
		status.Conditions = appendCondition(status.Conditions, reason, message)
	})
	if err != nil {
		e.l.V(1).Infof("engine: recording condition on Service %s/%s: %v", namespace, name, err)
	}
}

func appendCondition(conditions []corev1.Condition, reason, message string) []corev1.Condition {
	const maxConditions = 10
	conditions = append(conditions, corev1.Condition{
		Type:               "ReconcileFailing",
		Status:             "True",
		Reason:             reason,
		Message:            message,
		LastTransitionTime: time.Now(),
	})
	if len(conditions) > maxConditions {
		conditions = conditions[len(conditions)-maxConditions:]
	}
	return conditions
}

// runKindQueue owns the watch-subscribe, periodic-tick, and worker-pool
// plumbing shared by every kind the engine drives; T varies (ReplicaSet,
// Service) but the dispatch shape does not.
func runKindQueue[T store.Resource[T]](
	ctx context.Context,
	l logger.Logger,
	kind string,
	watch func() (<-chan store.Event[T], func()),
	list func() []T,
	reconcile func(namespace, name string) error,
	onRepeatedFailure func(namespace, name, reason, message string),
) {
	queue := workqueue.NewRateLimitingQueue(workqueue.NewItemExponentialFailureRateLimiter(config.BackoffBase, config.BackoffCap))

	events, cancelWatch := watch()
	defer cancelWatch()

	ticker := time.NewTicker(config.ReconcileTick)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				queue.ShutDown()
				return
			case ev, ok := <-events:
				if !ok {
					queue.ShutDown()
					return
				}
				queue.Add(keyOf(ev.Namespace, ev.Name))
			case <-ticker.C:
				for _, obj := range list() {
					m := obj.GetMeta()
					queue.Add(keyOf(m.Namespace, m.Name))
				}
			}
		}
	}()

	var workers sync.WaitGroup
	workers.Add(workersPerKind)
	for i := 0; i < workersPerKind; i++ {
		go func() {
			defer workers.Done()
			for processNext(queue, l, kind, reconcile, onRepeatedFailure) {
			}
		}()
	}
	workers.Wait()
}

func processNext(
	queue workqueue.RateLimitingInterface,
	l logger.Logger,
	kind string,
	reconcile func(namespace, name string) error,
	onRepeatedFailure func(namespace, name, reason, message string),
) bool {
	item, shutdown := queue.Get()
	if shutdown {
		return false
	}
	defer queue.Done(item)

	key := item.(string)
	namespace, name := splitKey(key)

	err := reconcile(namespace, name)
	if err == nil {
		queue.Forget(item)
		return true
	}

	l.V(1).Infof("engine: %s %s reconcile failed: %v", kind, key, err)
	if queue.NumRequeues(item) >= maxRequeues {
		queue.Forget(item)
		if onRepeatedFailure != nil {
			onRepeatedFailure(namespace, name, "MaxRetriesExceeded", err.Error())
		}
		return true
	}
	queue.AddRateLimited(item)
	return true
}

func keyOf(namespace, name string) string { return namespace + "/" + name }

func splitKey(key string) (namespace, name string) {
	idx := strings.IndexByte(key, '/')
	if idx < 0 {
		return corev1.DefaultNamespace, key
	}
	return key[:idx], key[idx+1:]
}
