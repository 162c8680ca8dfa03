// ccat-sim-server hosts the experiment control plane: it shapes a network
// device with tc/netem, runs codec loss sweeps on request, and exposes
// Prometheus metrics for the results. The gRPC surface binds against
// generated stubs when built with -tags grpcproto; without the tag the
// server still runs and serves metrics.
package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/wirefec/ccat/internal/env"
	"github.com/wirefec/ccat/internal/sim"
)

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ccat_sim_sweeps_total",
		Help: "Completed loss sweeps.",
	})
	effLossAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ccat_sim_effective_loss_avg",
		Help: "Average effective loss of the last sweep.",
	})
	originalsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ccat_sim_originals_sent_total",
		Help: "Originals pushed through sweep pairs.",
	})
	packetsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ccat_sim_packets_recovered_total",
		Help: "Originals recovered through the codec callback.",
	})
)

func recordResult(res *env.ExperimentResult) {
	sweepsTotal.Inc()
	effLossAvg.Set(res.EffLossAvg)
	originalsSent.Add(float64(res.OriginalsSent))
	packetsRecovered.Add(float64(res.Recovered))
}

func main() {
	log := slog.NewBackend(os.Stderr).Logger("SIM")
	log.SetLevel(slog.LevelInfo)

	mgr := sim.NewManager()
	defer mgr.Cleanup()

	// Trap signals to ensure tc rules are removed.
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-c; _ = mgr.Cleanup(); os.Exit(0) }()

	srv := env.NewServer(mgr, log)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.Infof("metrics on :2112/metrics")
		if err := http.ListenAndServe(":2112", nil); err != nil {
			log.Errorf("metrics server: %v", err)
		}
	}()

	ln, err := net.Listen("tcp", ":50051")
	if err != nil {
		log.Errorf("listen: %v", err)
		return
	}
	grpcSrv := grpc.NewServer()
	registerExperiment(grpcSrv, srv, log)
	log.Infof("ccat experiment control listening on :50051")
	if err := grpcSrv.Serve(ln); err != nil {
		log.Errorf("grpc serve: %v", err)
	}
}
