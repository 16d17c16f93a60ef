package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"indexer-agent/internal/config"
	"indexer-agent/internal/logger"
	"indexer-agent/internal/metrics"
	"indexer-agent/internal/scheduler"
	"indexer-agent/internal/store"
)

func newStartCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the reconciler against a single protocol network",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(context.Background(), v)
		},
	}
	config.BindStartFlags(cmd.Flags(), v)
	return cmd
}

func runStart(ctx context.Context, v *viper.Viper) error {
	log := logger.New(v.GetString("log-level"))

	spec, err := config.FromViper(v)
	if err != nil {
		return err
	}

	st, err := store.Open(store.Config{
		Host:     v.GetString("postgres-host"),
		Port:     v.GetInt("postgres-port"),
		Database: v.GetString("postgres-database"),
		User:     v.GetString("postgres-username"),
		Password: v.GetString("postgres-password"),
	}, log)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signalContext(ctx)
	defer cancel()

	unit, err := buildUnit(ctx, spec, st, log)
	if err != nil {
		return err
	}

	metrics.Register(prometheus.DefaultRegisterer)
	serveMetrics(v.GetInt("metrics-port"), log)

	sched := scheduler.New([]scheduler.NetworkUnit{unit}, v.GetDuration("polling-interval"), log)
	sched.Run(ctx)

	log.Noticef("shutting down")
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ts := make(chan os.Signal, 1)
	signal.Notify(ts, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ts
		cancel()
	}()
	return ctx, cancel
}

func serveMetrics(port int, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := portAddr(port)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warningf("metrics server on %s stopped: %s", addr, err.Error())
		}
	}()
}

func portAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
