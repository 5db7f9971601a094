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
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/kind/pkg/log"

	"github.com/podctl/podctl/pkg/logger"
	"github.com/podctl/podctl/pkg/version"
)

const textBanner = `
  ____            _    _____ _ _
 |  _ \ ___   __ _| |  / ____| | |
 | |_) / _ \ / _' | | | |    | | |
 |  __/ (_) | (_| | | | |____| | |
 |_|   \___/ \__,_|_|  \_____|_|_|`

func NewRootCommand() *cobra.Command {
	var verbosity int32
	l := logger.New(os.Stdout, log.Level(verbosity), logger.WithColored())

	cmd := &cobra.Command{
		Use:          "orchestrator",
		Short:        "orchestrator is a single-host container orchestration control plane.",
		Long:         fmt.Sprintf("%s\norchestrator is a single-host container orchestration control plane.", textBanner),
		Version:      version.Get().String(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			type verboser interface{ SetVerbosity(log.Level) }
			if v, ok := l.(verboser); ok {
				v.SetVerbosity(log.Level(verbosity))
				return nil
			}
			return fmt.Errorf("logger does not implement SetVerbosity")
		},
	}

	cmd.PersistentFlags().Int32VarP(&verbosity, "verbosity", "v", 0, "info log verbosity, higher value produces more output")

	cmd.AddCommand(NewRunCommand(l))
	cmd.AddCommand(NewVersionCommand(l))
	cmd.AddCommand(NewGetCommand(l))
	cmd.AddCommand(NewApplyCommand(l))
	cmd.AddCommand(NewDeleteCommand(l))

	return cmd
}
