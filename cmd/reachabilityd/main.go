/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command reachabilityd keeps a connectivity verdict up to date and serves it
// as health and metrics endpoints.
//
//	reachabilityd -config /etc/reachability.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/srediag/reachability/adapter"
	"github.com/srediag/reachability/internal/logging"
	"github.com/srediag/reachability/pkg/config"
	"github.com/srediag/reachability/pkg/connectivity"
)

const defaultListen = "127.0.0.1:9464"

var log = logging.New("reachabilityd")

func main() {
	cfgPath := flag.String("config", "", "path to the YAML configuration file")
	listen := flag.String("listen", "", "admin listen address, overrides admin.listen")
	flag.Parse()

	if os.Getenv(logging.EnvLogLevel) == "" {
		logging.SetLevel(logging.LevelInfo)
	}

	// --------------------
	// Load + validate config
	// --------------------

	file := &config.File{}
	if *cfgPath != "" {
		var err error
		file, err = config.Load(*cfgPath)
		if err != nil {
			log.Errorf("config load failed: %v", err)
			os.Exit(1)
		}
	}
	if err := config.Validate(file); err != nil {
		log.Errorf("config validation failed: %v", err)
		os.Exit(1)
	}
	addr := file.Admin.Listen
	if *listen != "" {
		addr = *listen
	}
	if addr == "" {
		addr = defaultListen
	}

	trigger, err := adapter.NewTriggerSource(file.Trigger.Kind, file.Trigger.PollInterval)
	if err != nil {
		log.Errorf("trigger source: %v", err)
		os.Exit(1)
	}

	// --------------------
	// Checker
	// --------------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	checker := connectivity.New(
		connectivity.WithRegisterer(reg),
		connectivity.WithTracer(otel.Tracer("github.com/srediag/reachability")),
		connectivity.WithTriggerSource(trigger),
		connectivity.WithConfig(file.Options()...),
	)
	defer checker.Close()

	otelReg, err := adapter.RegisterOTelMetrics(otel.Meter("github.com/srediag/reachability"), checker)
	if err != nil {
		log.Warnf("otel metrics disabled: %v", err)
	} else {
		defer func() { _ = otelReg.Unregister() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub := checker.StatusChanges()
	defer sub.Close()

	// --------------------
	// Admin endpoints
	// --------------------

	health := adapter.NewHealthHandler(checker, reg)
	mux := http.NewServeMux()
	mux.Handle("/live", health)
	mux.Handle("/ready", health)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("admin server: %v", err)
			stop()
		}
	}()

	snap := checker.Config()
	log.Infof("watching %d probes every %s (policy %s), admin on %s",
		len(snap.Probes), snap.PollInterval, snap.Policy, addr)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = srv.Shutdown(shutdownCtx)
			cancel()
			return
		case v, ok := <-sub.C():
			if !ok {
				return
			}
			log.Infof("connectivity %s", v)
		}
	}
}
