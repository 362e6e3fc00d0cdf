// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/devac/internal/bootstrap"
	"github.com/kraklabs/devac/internal/errors"
	"github.com/kraklabs/devac/internal/ui"
	"github.com/kraklabs/devac/pkg/hub"
	"github.com/kraklabs/devac/pkg/ipc"
	"github.com/kraklabs/devac/pkg/queryengine"
)

func runServe(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	metricsAddr := fs.String("metrics-addr", "", "Address to expose Prometheus metrics on (empty disables)")
	memLimit := fs.Int("memory-limit-mb", 0, "Query engine SQLite page cache limit in MB")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: devac serve [--metrics-addr :9090]\n\nStarts the Federation Hub as a long-running IPC server over a Unix socket.\n")
	}
	_ = fs.Parse(args)

	logger := newLogger(globals)
	wsInfo, err := bootstrap.OpenWorkspace(globals.WorkspaceRoot)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	reg := prometheus.NewRegistry()
	metrics := hub.NewMetrics(reg)

	h, err := hub.Init(wsInfo.HubDir, false, logger, metrics)
	if err != nil {
		errors.FatalError(errors.FromEngErr("Cannot open hub catalog", err), globals.JSON)
	}
	defer h.Close()

	qe, err := queryengine.New(*memLimit, logger)
	if err != nil {
		errors.FatalError(errors.FromEngErr("Cannot start query engine", err), globals.JSON)
	}
	defer qe.Close()

	socketPath := filepath.Join(wsInfo.HubDir, ipc.SocketName)
	srv, err := ipc.Listen(socketPath, ipc.NewHubHandler(h, qe), logger)
	if err != nil {
		errors.FatalError(errors.NewUserError("Cannot listen on hub socket", err.Error(), fmt.Sprintf("Check for a stale lock on %s", socketPath), err), globals.JSON)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			httpSrv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			logger.Info("serve.metrics.start", "addr", *metricsAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("serve.metrics.error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("serve.shutdown.signal")
		cancel()
		srv.Close()
	}()

	ui.Successf("Hub listening on %s", socketPath)
	go srv.Serve()
	<-ctx.Done()
}
