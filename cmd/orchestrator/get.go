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
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
	"github.com/podctl/podctl/pkg/client"
	"github.com/podctl/podctl/pkg/logger"
)

type getOptions struct {
	Server    string
	Namespace string
}

func NewGetCommand(l logger.Logger) *cobra.Command {
	var options getOptions

	cmd := &cobra.Command{
		Use:   "get [pods|replicasets|services] [name]",
		Short: "List or describe orchestrator resources",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(options.Server)
			ctx := context.Background()
			name := ""
			if len(args) == 2 {
				name = args[1]
			}

			switch args[0] {
			case "pods", "pod", "po":
				return getPods(ctx, c, options.Namespace, name)
			case "replicasets", "replicaset", "rs":
				return getReplicaSets(ctx, c, options.Namespace, name)
			case "services", "service", "svc":
				return getServices(ctx, c, options.Namespace, name)
			default:
				return fmt.Errorf("unknown resource kind %q", args[0])
			}
		},
	}

	cmd.Flags().StringVar(&options.Server, "server", "http://127.0.0.1:3000", "orchestrator API base URL")
	cmd.Flags().StringVarP(&options.Namespace, "namespace", "n", corev1.DefaultNamespace, "namespace to query")
	return cmd
}

func configListView(table *tablewriter.Table) {
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
}

func getPods(ctx context.Context, c *client.Client, namespace, name string) error {
	var pods []*corev1.Pod
	if name != "" {
		pod, err := c.GetPod(ctx, namespace, name)
		if err != nil {
			return err
		}
		pods = []*corev1.Pod{pod}
	} else {
		var err error
		pods, err = c.ListPods(ctx, namespace)
		if err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	configListView(table)
	table.SetHeader([]string{"Name", "Namespace", "Phase", "IP", "Reason"})
	defer table.Render()
	for _, pod := range pods {
		table.Append([]string{
			pod.Metadata.Name,
			pod.Metadata.Namespace,
			string(pod.Status.Phase),
			pod.Status.PodIP,
			pod.Status.Reason,
		})
	}
	return nil
}

func getReplicaSets(ctx context.Context, c *client.Client, namespace, name string) error {
	var sets []*corev1.ReplicaSet
	if name != "" {
		rs, err := c.GetReplicaSet(ctx, namespace, name)
		if err != nil {
			return err
		}
		sets = []*corev1.ReplicaSet{rs}
	} else {
		var err error
		sets, err = c.ListReplicaSets(ctx, namespace)
		if err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	configListView(table)
	table.SetHeader([]string{"Name", "Namespace", "Desired", "Ready"})
	defer table.Render()
	for _, rs := range sets {
		table.Append([]string{
			rs.Metadata.Name,
			rs.Metadata.Namespace,
			strconv.Itoa(rs.Spec.Replicas),
			strconv.Itoa(rs.Status.ReadyReplicas),
		})
	}
	return nil
}

func getServices(ctx context.Context, c *client.Client, namespace, name string) error {
	var services []*corev1.Service
	if name != "" {
		svc, err := c.GetService(ctx, namespace, name)
		if err != nil {
			return err
		}
		services = []*corev1.Service{svc}
	} else {
		var err error
		services, err = c.ListServices(ctx, namespace)
		if err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	configListView(table)
	table.SetHeader([]string{"Name", "Namespace", "Endpoints", "LoadBalancer"})
	defer table.Render()
	for _, svc := range services {
		table.Append([]string{
			svc.Metadata.Name,
			svc.Metadata.Namespace,
			strconv.Itoa(len(svc.Status.Endpoints)),
			svc.Status.LoadBalancerID,
		})
	}
	return nil
}
