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
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/podctl/podctl/pkg/api"
	"github.com/podctl/podctl/pkg/config"
	"github.com/podctl/podctl/pkg/controller/replicaset"
	"github.com/podctl/podctl/pkg/controller/service"
	"github.com/podctl/podctl/pkg/engine"
	"github.com/podctl/podctl/pkg/logger"
	"github.com/podctl/podctl/pkg/podmanager"
	"github.com/podctl/podctl/pkg/runtime"
	"github.com/podctl/podctl/pkg/store"
)

type runOptions struct {
	Port int
}

// NewRunCommand starts the control plane in the foreground: store, pod
// manager, reconciliation engine, then the API listener. On SIGINT/SIGTERM
// the shared context is cancelled, which stops the pod manager and engine
// at once and aborts their in-flight runtime calls; the HTTP server is then
// shut down within config.ShutdownGrace, and the loops are waited for
// without a time bound.
func NewRunCommand(l logger.Logger) *cobra.Command {
	var options runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the orchestrator control plane in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(l, options)
		},
	}

	cmd.Flags().IntVarP(&options.Port, "port", "p", 3000, "HTTP port the API surface listens on")
	return cmd
}

func runServer(l logger.Logger, options runOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aggregate := store.NewAggregate()
	adapter := runtime.NewPodman(l)

	if err := discardStaleContainers(ctx, adapter, l); err != nil {
		l.Warnf("startup sweep: %v", err)
	}

	podMgr := podmanager.New(aggregate.Pods, adapter, l)
	rsCtrl := replicaset.New(aggregate.ReplicaSets, aggregate.Pods)
	svcCtrl := service.New(aggregate.Services, aggregate.Pods, adapter)
	eng := engine.New(aggregate, rsCtrl, svcCtrl, l)

	var ready int32
	server := api.NewServer(aggregate, l, func() bool { return atomic.LoadInt32(&ready) == 1 })

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); podMgr.Run(ctx) }()
	go func() { defer wg.Done(); eng.Run(ctx) }()
	atomic.StoreInt32(&ready, 1)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", options.Port), Handler: server}
	go func() {
		l.V(0).Infof("orchestrator listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	l.V(0).Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	wg.Wait()
	return nil
}

// discardStaleContainers removes every container carrying the orchestrator
// label prefix from a prior run, on each start, rather than adopting it.
func discardStaleContainers(ctx context.Context, adapter runtime.Adapter, l logger.Logger) error {
	ids, err := adapter.ListOrchestratorContainers(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		l.V(1).Infof("discarding stale container %s from a previous run", id)
		adapter.StopAndRemove(ctx, id)
	}
	return nil
}
