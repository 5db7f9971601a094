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

package podmanager

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/kind/pkg/log"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/config"
	"github.com/podctl/podctl/pkg/logger"
	"github.com/podctl/podctl/pkg/runtime"
	"github.com/podctl/podctl/pkg/store"
)

func newTestManager(t *testing.T) (*Manager, *store.PodStore, *runtime.Fake) {
	t.Helper()
	pods := store.NewPodStore()
	fake := runtime.NewFake()
	l := logger.New(&bytes.Buffer{}, log.Level(0))
	return New(pods, fake, l), pods, fake
}

func newTestPod(name string) *corev1.Pod {
	return &corev1.Pod{
		Metadata: corev1.ObjectMeta{Name: name},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: "main", Image: "busybox"}},
		},
	}
}

func eventuallyPhase(t *testing.T, pods *store.PodStore, name string, phase corev1.PodPhase) *corev1.Pod {
	t.Helper()
	deadline := time.Now().Add(config.ReconcileTick + 2*time.Second)
	for time.Now().Before(deadline) {
		pod, err := pods.Get(corev1.DefaultNamespace, name)
		require.NoError(t, err)
		if pod.Status.Phase == phase {
			return pod
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("pod %s never reached phase %s", name, phase)
	return nil
}

func TestManagerStartsContainerForPendingPod(t *testing.T) {
	mgr, pods, fake := newTestManager(t)

	created, err := pods.Create(newTestPod("web"))
	require.NoError(t, err)
	assert.Equal(t, corev1.PodPending, created.Status.Phase)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	pod := eventuallyPhase(t, pods, "web", corev1.PodRunning)
	assert.NotEmpty(t, pod.Status.ContainerID)
	assert.NotEmpty(t, pod.Status.PodIP)

	result, err := fake.Inspect(ctx, pod.Status.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, runtime.StateRunning, result.State)
}

func TestManagerMarksFailedOnContainerDisappearance(t *testing.T) {
	mgr, pods, fake := newTestManager(t)

	_, err := pods.Create(newTestPod("drifted"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	running := eventuallyPhase(t, pods, "drifted", corev1.PodRunning)
	fake.SimulateDisappear(running.Status.ContainerID)

	pod := eventuallyPhase(t, pods, "drifted", corev1.PodFailed)
	assert.Equal(t, "ContainerDisappeared", pod.Status.Reason)
	assert.Empty(t, pod.Status.ContainerID)
}

func TestManagerMarksFailedOnImagePullFailure(t *testing.T) {
	mgr, pods, fake := newTestManager(t)
	fake.FailImages["bad-image"] = true

	pod := newTestPod("broken")
	pod.Spec.Containers[0].Image = "bad-image"
	_, err := pods.Create(pod)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	failed := eventuallyPhase(t, pods, "broken", corev1.PodFailed)
	assert.Equal(t, string(runtime.ReasonImagePullFailed), failed.Status.Reason)
}

func TestManagerTransitionsToSucceededOnCleanExit(t *testing.T) {
	mgr, pods, fake := newTestManager(t)

	_, err := pods.Create(newTestPod("batch"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	running := eventuallyPhase(t, pods, "batch", corev1.PodRunning)
	fake.SimulateExit(running.Status.ContainerID, 0)

	eventuallyPhase(t, pods, "batch", corev1.PodSucceeded)
}

func TestManagerStopsContainerOnDeletion(t *testing.T) {
	mgr, pods, fake := newTestManager(t)

	_, err := pods.Create(newTestPod("ephemeral"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	running := eventuallyPhase(t, pods, "ephemeral", corev1.PodRunning)
	require.NoError(t, pods.Delete(corev1.DefaultNamespace, "ephemeral"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := pods.Get(corev1.DefaultNamespace, "ephemeral"); err != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	_, err = pods.Get(corev1.DefaultNamespace, "ephemeral")
	assert.Error(t, err)

	result, err := fake.Inspect(ctx, running.Status.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, runtime.StateMissing, result.State)
}
