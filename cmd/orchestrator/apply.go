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
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/client"
	"github.com/podctl/podctl/pkg/logger"
	"github.com/podctl/podctl/pkg/status"
)

type applyOptions struct {
	Server   string
	Filename string
	Wait     bool
}

// manifestHeader is decoded first to dispatch on kind before the full typed
// unmarshal, the same two-pass approach a Helm values loader uses for
// untyped values.yaml overrides.
type manifestHeader struct {
	Kind     corev1.Kind `yaml:"kind"`
	Metadata struct {
		Namespace string `yaml:"namespace"`
	} `yaml:"metadata"`
}

func NewApplyCommand(l logger.Logger) *cobra.Command {
	var options applyOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create a resource from a YAML manifest (an existing ReplicaSet is updated)",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(options.Filename)
			if err != nil {
				return err
			}

			var header manifestHeader
			if err := yaml.Unmarshal(raw, &header); err != nil {
				return fmt.Errorf("decoding manifest: %w", err)
			}
			namespace := header.Metadata.Namespace
			if namespace == "" {
				namespace = corev1.DefaultNamespace
			}

			c := client.New(options.Server)
			ctx := context.Background()

			switch header.Kind {
			case corev1.KindPod:
				var pod corev1.Pod
				if err := yaml.Unmarshal(raw, &pod); err != nil {
					return err
				}
				created, err := c.CreatePod(ctx, namespace, &pod)
				if err != nil {
					return err
				}
				fmt.Printf("pod/%s created\n", created.Metadata.Name)
				if options.Wait {
					return waitForRunning(ctx, c, namespace, created.Metadata.Name)
				}
			case corev1.KindReplicaSet:
				var rs corev1.ReplicaSet
				if err := yaml.Unmarshal(raw, &rs); err != nil {
					return err
				}
				if existing, err := c.GetReplicaSet(ctx, namespace, rs.Metadata.Name); err == nil && existing != nil {
					updated, err := c.UpdateReplicaSet(ctx, namespace, rs.Metadata.Name, &rs)
					if err != nil {
						return err
					}
					fmt.Printf("replicaset/%s configured\n", updated.Metadata.Name)
					return nil
				}
				created, err := c.CreateReplicaSet(ctx, namespace, &rs)
				if err != nil {
					return err
				}
				fmt.Printf("replicaset/%s created\n", created.Metadata.Name)
			case corev1.KindService:
				var svc corev1.Service
				if err := yaml.Unmarshal(raw, &svc); err != nil {
					return err
				}
				created, err := c.CreateService(ctx, namespace, &svc)
				if err != nil {
					return err
				}
				fmt.Printf("service/%s created\n", created.Metadata.Name)
			default:
				return fmt.Errorf("unknown kind %q in manifest", header.Kind)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&options.Server, "server", "http://127.0.0.1:3000", "orchestrator API base URL")
	cmd.Flags().StringVarP(&options.Filename, "filename", "f", "", "path to a YAML manifest")
	cmd.Flags().BoolVarP(&options.Wait, "wait", "w", false, "for a Pod manifest, block until it reaches the Running phase")
	_ = cmd.MarkFlagRequired("filename")
	return cmd
}

// waitForRunning polls the Pod until it is Running or Failed, or 30 seconds
// pass (a Succeeded Pod is polled until the timeout), showing progress the way a cluster-create command does while
// a cluster comes up.
func waitForRunning(ctx context.Context, c *client.Client, namespace, name string) error {
	spin, err := status.NewSpinner()
	if err != nil {
		return err
	}
	spin.Start(fmt.Sprintf("waiting for pod/%s to start", name))

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		pod, err := c.GetPod(ctx, namespace, name)
		if err != nil {
			spin.Stop(false, err.Error())
			return err
		}
		switch pod.Status.Phase {
		case corev1.PodRunning:
			spin.Stop(true, fmt.Sprintf("pod/%s is Running", name))
			return nil
		case corev1.PodFailed:
			spin.Stop(false, fmt.Sprintf("pod/%s failed: %s", name, pod.Status.Reason))
			return fmt.Errorf("pod/%s failed: %s", name, pod.Status.Reason)
		}
		time.Sleep(200 * time.Millisecond)
	}

	spin.Stop(false, fmt.Sprintf("pod/%s did not start in time", name))
	return fmt.Errorf("timed out waiting for pod/%s", name)
}
