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

// Package config centralizes the tunables and the struct validator shared
// across the control plane.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Tunables not exposed as flags.
const (
	ReconcileTick         = 5 * time.Second
	BackoffBase           = 1 * time.Second
	BackoffCap            = 30 * time.Second
	ContainerStartTimeout = 30 * time.Second
	ContainerStopTimeout  = 10 * time.Second
	InspectTimeout        = 5 * time.Second
	ShutdownGrace         = 10 * time.Second
	DefaultNetwork        = "orchestrator-net"
)

var validate = validator.New()

// Struct runs go-playground/validator over obj's `validate` tags and
// collapses any failure into a single readable message.
func Struct(obj interface{}) error {
	if err := validate.Struct(obj); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("%s", verrs.Error())
		}
		return err
	}
	return nil
}
