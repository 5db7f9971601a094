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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/client"
	"github.com/podctl/podctl/pkg/logger"
)

type deleteOptions struct {
	Server    string
	Namespace string
}

func NewDeleteCommand(l logger.Logger) *cobra.Command {
	var options deleteOptions

	cmd := &cobra.Command{
		Use:   "delete [pods|replicasets|services] name",
		Short: "Delete a resource by kind and name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(options.Server)
			ctx := context.Background()
			name := args[1]

			switch args[0] {
			case "pods", "pod", "po":
				if err := c.DeletePod(ctx, options.Namespace, name); err != nil {
					return err
				}
				fmt.Printf("pod/%s deleted\n", name)
			case "replicasets", "replicaset", "rs":
				if err := c.DeleteReplicaSet(ctx, options.Namespace, name); err != nil {
					return err
				}
				fmt.Printf("replicaset/%s deleted\n", name)
			case "services", "service", "svc":
				if err := c.DeleteService(ctx, options.Namespace, name); err != nil {
					return err
				}
				fmt.Printf("service/%s deleted\n", name)
			default:
				return fmt.Errorf("unknown resource kind %q", args[0])
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&options.Server, "server", "http://127.0.0.1:3000", "orchestrator API base URL")
	cmd.Flags().StringVarP(&options.Namespace, "namespace", "n", corev1.DefaultNamespace, "namespace to act in")
	return cmd
}
