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

// Package store implements the concurrency-safe, in-memory Resource Store:
// a keyed repository of (kind, namespace, name) -> resource,
// with create/get/list/update/delete and a multi-consumer watch feed.
//
// The generic Store[T] below is the engine shared by every kind; the
// per-kind wrappers in pods.go/replicasets.go/services.go add the
// kind-specific semantics (status preservation on Update, the internal
// UpdateStatus path) on top of it.
package store

import (
	"sync"
	"time"

	metav1types "k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/uuid"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/apierrors"
)

// Resource is the constraint every stored kind satisfies: a pointer type
// whose ObjectMeta is reachable and which can deep-copy itself. This plays
// the role runtime.Object plays in the Kubernetes API machinery, scoped
// down to what this single-process store actually needs.
type Resource[T any] interface {
	GetMeta() *corev1.ObjectMeta
	DeepCopy() T
}

// EventType classifies a watch event.
type EventType string

const (
	Created EventType = "Created"
	Updated EventType = "Updated"
	Deleted EventType = "Deleted"
)

// Event is a single change notification, carrying a full snapshot of the
// object after the change (and, for Updated, before it too).
type Event[T any] struct {
	Type      EventType
	Namespace string
	Name      string
	Object    T
	Previous  T
}

type key struct {
	namespace string
	name      string
}

// Store is the generic, thread-safe keyed repository for one resource
// kind. Reads take the read lock; writes take the write lock; watch
// notifications are delivered after the write lock is released so
// observers never see an event for a state they can't also read back.
type Store[T Resource[T]] struct {
	resource string // human-readable kind name, for error messages

	mu    sync.RWMutex
	items map[key]T

	watchMu  sync.Mutex
	watchers map[int]*watcher[T]
	nextID   int
}

type watcher[T any] struct {
	ch chan Event[T]
}

// New creates an empty Store for the given resource kind name (e.g. "Pod").
func New[T Resource[T]](resource string) *Store[T] {
	return &Store[T]{
		resource: resource,
		items:    make(map[key]T),
		watchers: make(map[int]*watcher[T]),
	}
}

// Create installs obj under (namespace, name), assigning uid and the
// creation timestamp. Fails with AlreadyExists if the key is taken.
func (s *Store[T]) Create(obj T) (T, error) {
	var zero T
	m := obj.GetMeta()
	if m.Namespace == "" {
		m.Namespace = corev1.DefaultNamespace
	}
	k := key{namespace: m.Namespace, name: m.Name}

	s.mu.Lock()
	if _, ok := s.items[k]; ok {
		s.mu.Unlock()
		return zero, apierrors.NewAlreadyExists(s.resource, k.namespace, k.name)
	}

	stored := obj.DeepCopy()
	sm := stored.GetMeta()
	sm.UID = metav1types.UID(uuid.NewUUID())
	sm.CreationTimestamp = time.Now()
	sm.DeletionTimestamp = nil
	s.items[k] = stored
	snapshot := stored.DeepCopy()
	s.mu.Unlock()

	s.publish(Event[T]{Type: Created, Namespace: k.namespace, Name: k.name, Object: snapshot})
	return snapshot, nil
}

// Get returns a deep copy of the object at key, or NotFound.
func (s *Store[T]) Get(namespace, name string) (T, error) {
	var zero T
	s.mu.RLock()
	obj, ok := s.items[key{namespace: namespace, name: name}]
	s.mu.RUnlock()
	if !ok {
		return zero, apierrors.NewNotFound(s.resource, namespace, name)
	}
	return obj.DeepCopy(), nil
}

// List returns deep copies of every non-terminating object in namespace
// whose labels match sel (nil or empty sel matches everything, unlike the
// per-object Selector.Matches semantics used by controllers).
func (s *Store[T]) List(namespace string, sel map[string]string) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.items))
	for k, obj := range s.items {
		if namespace != "" && k.namespace != namespace {
			continue
		}
		if obj.GetMeta().DeletionTimestamp != nil {
			continue
		}
		if !labelsMatch(sel, obj.GetMeta().Labels) {
			continue
		}
		out = append(out, obj.DeepCopy())
	}
	return out
}

// ListIncludingTerminating is List but also returns objects that have been
// marked for deletion and are waiting on a finalizer. Pod/ReplicaSet
// controllers use this to keep driving cleanup of an object they're
// already tearing down.
func (s *Store[T]) ListIncludingTerminating(namespace string) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.items))
	for k, obj := range s.items {
		if namespace != "" && k.namespace != namespace {
			continue
		}
		out = append(out, obj.DeepCopy())
	}
	return out
}

func labelsMatch(sel, target map[string]string) bool {
	for k, v := range sel {
		if target[k] != v {
			return false
		}
	}
	return true
}

// mutate is the shared implementation behind Update and UpdateStatus: it
// loads the current object, lets fn rewrite it in place, and commits the
// result. fn is responsible for preserving whatever fields this call is
// not supposed to touch.
func (s *Store[T]) mutate(namespace, name string, fn func(current T) (T, error)) (T, error) {
	var zero T
	k := key{namespace: namespace, name: name}

	s.mu.Lock()
	current, ok := s.items[k]
	if !ok {
		s.mu.Unlock()
		return zero, apierrors.NewNotFound(s.resource, namespace, name)
	}
	before := current.DeepCopy()

	next, err := fn(current.DeepCopy())
	if err != nil {
		s.mu.Unlock()
		return zero, err
	}
	nm := next.GetMeta()
	nm.Namespace = namespace
	nm.Name = name
	s.items[k] = next
	snapshot := next.DeepCopy()
	s.mu.Unlock()

	s.publish(Event[T]{Type: Updated, Namespace: k.namespace, Name: k.name, Object: snapshot, Previous: before})
	return snapshot, nil
}

// Delete marks the object at key as deleted and emits a Deleted event.
// The entry remains readable (via Get/ListIncludingTerminating) until
// Finalize removes it; double-delete is NotFound, not an error leak.
func (s *Store[T]) Delete(namespace, name string) error {
	k := key{namespace: namespace, name: name}

	s.mu.Lock()
	current, ok := s.items[k]
	if !ok {
		s.mu.Unlock()
		return apierrors.NewNotFound(s.resource, namespace, name)
	}
	if current.GetMeta().DeletionTimestamp != nil {
		s.mu.Unlock()
		return apierrors.NewNotFound(s.resource, namespace, name)
	}
	now := time.Now()
	current.GetMeta().DeletionTimestamp = &now
	s.items[k] = current
	snapshot := current.DeepCopy()
	s.mu.Unlock()

	s.publish(Event[T]{Type: Deleted, Namespace: k.namespace, Name: k.name, Object: snapshot})
	return nil
}

// Finalize removes the object at key outright. It is idempotent: calling
// it on an already-removed or never-existing key is a no-op, so that
// concurrent cascading sweeps never race each other into an error.
func (s *Store[T]) Finalize(namespace, name string) {
	k := key{namespace: namespace, name: name}
	s.mu.Lock()
	delete(s.items, k)
	s.mu.Unlock()
}

// Watch subscribes to every Created/Updated/Deleted event for this kind.
// The new subscriber first receives a synthetic Created for every object
// currently in the store, then a live feed. Callers must drain the
// returned channel and call the returned cancel function when done.
func (s *Store[T]) Watch(bufferSize int) (<-chan Event[T], func()) {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	w := &watcher[T]{ch: make(chan Event[T], bufferSize)}

	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	s.watchMu.Unlock()

	// Replay the initial list without holding watchMu, so a concurrent
	// write published between registration and replay is still observed
	// in order: writers always publish holding the data lock only
	// briefly, and replay below re-reads the live map.
	s.mu.RLock()
	initial := make([]Event[T], 0, len(s.items))
	for k, obj := range s.items {
		if obj.GetMeta().DeletionTimestamp != nil {
			continue
		}
		initial = append(initial, Event[T]{Type: Created, Namespace: k.namespace, Name: k.name, Object: obj.DeepCopy()})
	}
	s.mu.RUnlock()

	go func() {
		for _, ev := range initial {
			w.ch <- ev
		}
	}()

	cancel := func() {
		s.watchMu.Lock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w.ch)
		}
		s.watchMu.Unlock()
	}
	return w.ch, cancel
}

func (s *Store[T]) publish(ev Event[T]) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, w := range s.watchers {
		select {
		case w.ch <- ev:
		default:
			// A slow consumer must not stall the store; the periodic
			// reconciliation tick closes any gap this drops.
		}
	}
}
