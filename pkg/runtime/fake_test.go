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

package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
)

func TestFakeEnsureNetworkIsIdempotent(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	first, err := f.EnsureNetwork(ctx)
	require.NoError(t, err)
	second, err := f.EnsureNetwork(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFakeRunContainerAssignsDistinctIPs(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	a, err := f.RunContainer(ctx, "default-a", "nginx", nil, nil, "orchestrator-net")
	require.NoError(t, err)
	b, err := f.RunContainer(ctx, "default-b", "nginx", nil, nil, "orchestrator-net")
	require.NoError(t, err)

	assert.NotEmpty(t, a.ContainerID)
	assert.NotEmpty(t, a.PodIP)
	assert.NotEqual(t, a.ContainerID, b.ContainerID)
	assert.NotEqual(t, a.PodIP, b.PodIP)
}

func TestFakeRunContainerNameConflict(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	_, err := f.RunContainer(ctx, "default-a", "nginx", nil, nil, "orchestrator-net")
	require.NoError(t, err)

	_, err = f.RunContainer(ctx, "default-a", "nginx", nil, nil, "orchestrator-net")
	require.Error(t, err)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ReasonNameConflict, runErr.Reason)
}

func TestFakeRunContainerImagePullFailure(t *testing.T) {
	f := NewFake()
	f.FailImages["broken:latest"] = true
	ctx := context.Background()

	_, err := f.RunContainer(ctx, "default-a", "broken:latest", nil, nil, "orchestrator-net")
	require.Error(t, err)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ReasonImagePullFailed, runErr.Reason)
}

func TestFakeInspectUnknownContainerIsMissing(t *testing.T) {
	f := NewFake()
	res, err := f.Inspect(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, StateMissing, res.State)
}

func TestFakeInspectReflectsSimulatedExit(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	result, err := f.RunContainer(ctx, "default-a", "nginx", nil, nil, "orchestrator-net")
	require.NoError(t, err)

	f.SimulateExit(result.ContainerID, 1)

	res, err := f.Inspect(ctx, result.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, StateExited, res.State)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 1, *res.ExitCode)
}

func TestFakeStopAndRemoveIsIdempotent(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	result, err := f.RunContainer(ctx, "default-a", "nginx", nil, nil, "orchestrator-net")
	require.NoError(t, err)

	f.StopAndRemove(ctx, result.ContainerID)
	f.StopAndRemove(ctx, result.ContainerID)

	res, err := f.Inspect(ctx, result.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, StateMissing, res.State)
}

func TestFakeSimulateDisappearRemovesContainer(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	result, err := f.RunContainer(ctx, "default-a", "nginx", nil, nil, "orchestrator-net")
	require.NoError(t, err)

	f.SimulateDisappear(result.ContainerID)

	res, err := f.Inspect(ctx, result.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, StateMissing, res.State)
}

func TestFakeLoadBalancerLifecycle(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	ports := []corev1.ServicePort{{Protocol: corev1.ProtocolTCP, Port: 80, TargetPort: 8080}}
	eps := []corev1.Endpoint{{PodIP: "10.89.0.2", TargetPort: 8080}}

	id, err := f.StartLoadBalancer(ctx, "web", ports, eps, "orchestrator-net")
	require.NoError(t, err)
	assert.Equal(t, eps, f.LoadBalancerEndpoints(id))

	updated := []corev1.Endpoint{{PodIP: "10.89.0.3", TargetPort: 8080}}
	newID, err := f.UpdateLoadBalancer(ctx, id, updated)
	require.NoError(t, err)
	assert.Equal(t, id, newID)
	assert.Equal(t, updated, f.LoadBalancerEndpoints(id))

	f.StopLoadBalancer(ctx, id)
	assert.Nil(t, f.LoadBalancerEndpoints(id))
}

func TestFakeUpdateLoadBalancerUnknownID(t *testing.T) {
	f := NewFake()
	_, err := f.UpdateLoadBalancer(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestFakeListOrchestratorContainersDeduplicatesByName(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	_, err := f.RunContainer(ctx, "default-a", "nginx", nil, nil, "orchestrator-net")
	require.NoError(t, err)
	_, err = f.RunContainer(ctx, "default-b", "nginx", nil, nil, "orchestrator-net")
	require.NoError(t, err)

	ids, err := f.ListOrchestratorContainers(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}
