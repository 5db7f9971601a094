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

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/podctl/podctl/pkg/logger"
	"github.com/podctl/podctl/pkg/version"
)

func NewVersionCommand(l logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of orchestrator and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s", version.Get())
		},
	}
}
