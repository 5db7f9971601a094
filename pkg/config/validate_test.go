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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testSpec struct {
	Name     string `validate:"required"`
	Replicas int    `validate:"gte=0"`
}

func TestStructAcceptsValidValue(t *testing.T) {
	err := Struct(&testSpec{Name: "web", Replicas: 3})
	assert.NoError(t, err)
}

func TestStructRejectsMissingRequiredField(t *testing.T) {
	err := Struct(&testSpec{Replicas: 3})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Name")
}

func TestStructRejectsNegativeValue(t *testing.T) {
	err := Struct(&testSpec{Name: "web", Replicas: -1})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Replicas")
}
