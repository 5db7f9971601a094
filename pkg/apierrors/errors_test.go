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

package apierrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("Pod", "default", "web")
	assert.True(t, Is(err, KindNotFound))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Contains(t, err.Error(), "Pod default/web")
	assert.Contains(t, err.Error(), `"web" not found`)
}

func TestNewAlreadyExists(t *testing.T) {
	err := NewAlreadyExists("ReplicaSet", "default", "web")
	assert.True(t, Is(err, KindAlreadyExists))
	assert.Contains(t, err.Error(), "already exists")
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Service", "selector is required")
	assert.True(t, Is(err, KindValidationError))
	assert.Contains(t, err.Error(), "selector is required")
}

func TestNewRuntimeTransientWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewRuntimeTransient("pull failed", cause)
	assert.True(t, Is(err, KindRuntimeTransient))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewRuntimeFatal(t *testing.T) {
	err := NewRuntimeFatal("image not found", nil)
	assert.True(t, Is(err, KindRuntimeFatal))
}

func TestNewInternal(t *testing.T) {
	err := NewInternal("unexpected state", nil)
	assert.True(t, Is(err, KindInternal))
}

func TestKindOfUntaggedErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestIsFollowsWrappedChain(t *testing.T) {
	inner := NewNotFound("Pod", "default", "web")
	wrapped := fmt.Errorf("listing pods: %w", inner)
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindAlreadyExists))
}

func TestIsFalseForNilOrUnrelatedError(t *testing.T) {
	assert.False(t, Is(nil, KindNotFound))
	assert.False(t, Is(errors.New("plain"), KindNotFound))
}
