// Command ripd is the RIP daemon composition root: it loads the
// configuration, wires the RIB, interface manager, protocol engine,
// metrics registry, event bus, control façade and HTTP surface together,
// then runs until a signal requests shutdown.
//
// Grounded on the teacher's cmd/exporter_example2/main.go: hostname/
// router-id resolution, prometheus.MustRegister, http.Server{Addr: ...}
// composition, logrus for startup/shutdown logging.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ripnet/ripd/pkg/config"
	"github.com/ripnet/ripd/pkg/control"
	"github.com/ripnet/ripd/pkg/engine"
	"github.com/ripnet/ripd/pkg/errs"
	"github.com/ripnet/ripd/pkg/events"
	"github.com/ripnet/ripd/pkg/httpapi"
	"github.com/ripnet/ripd/pkg/iface"
	"github.com/ripnet/ripd/pkg/metrics"
	"github.com/ripnet/ripd/pkg/rib"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "/etc/ripd/config.json", "path to the RIP daemon configuration file")
	httpAddr := flag.String("http", ":8080", "address the control/metrics HTTP surface listens on")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q: %v\n", *logLevel, err)
		return 1
	}
	log.SetLevel(lvl)
	entry := logrus.NewEntry(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		entry.WithError(err).Error("load configuration")
		return errs.ExitCode(err)
	}

	ribInstance := rib.New(rib.Timers{
		Timeout:         2 * cfg.UpdateInterval,
		GC:              cfg.GarbageCollectionTimer,
		HolddownEnabled: cfg.HolddownEnabled,
		Holddown:        cfg.HolddownTimer,
	})

	mgr, err := iface.NewManager(cfg.Port, entry)
	if err != nil {
		entry.WithError(err).Error("start interface manager")
		return errs.ExitCode(err)
	}
	defer mgr.Close()

	for _, i := range cfg.Interfaces {
		if err := mgr.AddInterface(&iface.Interface{Name: i.Name, Addr: i.Addr, MaskLen: i.MaskLen, Cost: i.Cost, Enabled: i.Enabled}); err != nil {
			entry.WithError(err).WithField("interface", i.Name).Error("bring up interface")
			return errs.ExitCode(err)
		}
	}

	bus := events.NewBus()
	mtr := metrics.NewRegistry()
	prometheus.MustRegister(metrics.NewCollector(mtr, prometheus.Labels{"router_id": cfg.RouterID}))

	eng := engine.New(cfg, ribInstance, mgr, bus, mtr, entry)
	facade := control.New(eng, ribInstance, mgr, mtr, bus, entry, cfg)

	watcher, err := config.NewWatcher(*configPath, entry)
	if err != nil {
		entry.WithError(err).Warn("config file watcher unavailable, hot reload disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go eng.Run(ctx)

	if watcher != nil {
		go func() {
			for next := range watcher.Changes() {
				if err := facade.ApplyConfig(ctx, next); err != nil {
					entry.WithError(err).Warn("apply reloaded configuration")
					continue
				}
				entry.WithField("version", next.Version).Info("configuration reloaded")
			}
		}()
		defer watcher.Close()
	}

	srv := &http.Server{Addr: *httpAddr, Handler: httpapi.NewServer(facade, entry)}
	go func() {
		entry.WithField("addr", *httpAddr).Info("control/metrics HTTP surface listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			entry.WithError(err).Error("http server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	entry.WithField("signal", sig.String()).Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	eng.Shutdown(shutdownCtx)
	_ = srv.Shutdown(shutdownCtx)
	cancel()

	fmt.Fprintln(os.Stderr, "ripd stopped")
	return 0
}
