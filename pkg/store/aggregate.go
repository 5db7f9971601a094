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

// Aggregate bundles the per-kind stores the rest of the control plane is
// wired against. There is exactly one Aggregate per process.
type Aggregate struct {
	Pods        *PodStore
	ReplicaSets *ReplicaSetStore
	Services    *ServiceStore
}

func NewAggregate() *Aggregate {
	return &Aggregate{
		Pods:        NewPodStore(),
		ReplicaSets: NewReplicaSetStore(),
		Services:    NewServiceStore(),
	}
}
