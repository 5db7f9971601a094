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

package e2e

import (
	"bytes"
	"context"

	"sigs.k8s.io/kind/pkg/log"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/controller/replicaset"
	"github.com/podctl/podctl/pkg/controller/service"
	"github.com/podctl/podctl/pkg/engine"
	"github.com/podctl/podctl/pkg/logger"
	"github.com/podctl/podctl/pkg/podmanager"
	"github.com/podctl/podctl/pkg/runtime"
	"github.com/podctl/podctl/pkg/store"
)

// harness wires one full control plane (store, pod manager, reconciliation
// engine) against the fake runtime adapter, the same assembly
// cmd/orchestrator's run subcommand does against Podman.
type harness struct {
	aggregate *store.Aggregate
	fake      *runtime.Fake
	cancel    context.CancelFunc
}

func newHarness() *harness {
	aggregate := store.NewAggregate()
	fake := runtime.NewFake()
	l := logger.New(&bytes.Buffer{}, log.Level(0))

	podMgr := podmanager.New(aggregate.Pods, fake, l)
	rsCtrl := replicaset.New(aggregate.ReplicaSets, aggregate.Pods)
	svcCtrl := service.New(aggregate.Services, aggregate.Pods, fake)
	eng := engine.New(aggregate, rsCtrl, svcCtrl, l)

	ctx, cancel := context.WithCancel(context.Background())
	go podMgr.Run(ctx)
	go eng.Run(ctx)

	return &harness{aggregate: aggregate, fake: fake, cancel: cancel}
}

func (h *harness) stop() {
	h.cancel()
}

func testContainer() corev1.PodSpec {
	return corev1.PodSpec{
		Containers: []corev1.Container{{
			Name:  "main",
			Image: "scenario:latest",
		}},
	}
}

func replicaSet(name string, replicas int, labels map[string]string) *corev1.ReplicaSet {
	return &corev1.ReplicaSet{
		Metadata: corev1.ObjectMeta{Name: name},
		Spec: corev1.ReplicaSetSpec{
			Replicas: replicas,
			Selector: corev1.Selector(labels),
			Template: corev1.PodTemplate{
				Metadata: corev1.ObjectMeta{Labels: labels},
				Spec:     testContainer(),
			},
		},
	}
}

func namedPod(name string, labels map[string]string) *corev1.Pod {
	return &corev1.Pod{
		Metadata: corev1.ObjectMeta{Name: name, Labels: labels},
		Spec:     testContainer(),
	}
}
