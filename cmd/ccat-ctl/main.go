//go:build grpcproto

// ccat-ctl drives a running ccat-sim-server: configure a link scenario, run
// a sweep, print the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	pb "github.com/wirefec/ccat/gen/ccatsim"
)

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:50051", "experiment gRPC address")
		cmd      = flag.String("cmd", "run", "command: configure|reset|run")
		dev      = flag.String("dev", "", "device to shape (empty skips tc)")
		egress   = flag.Bool("egress", true, "apply on egress")
		ingress  = flag.Bool("ingress", false, "apply on ingress via IFB")
		rtt      = flag.Float64("rtt", 40, "mean RTT ms")
		jitter   = flag.Float64("jitter", 5, "jitter ms")
		bw       = flag.Float64("bw", 0, "bandwidth Mbps (0=unlimited)")
		linkLoss = flag.Float64("link-loss", 0, "tc loss rate 0..1")
		pairs    = flag.Int("pairs", 100, "sender/receiver pairs per sweep")
		steps    = flag.Int("steps", 10000, "originals per pair")
		loss     = flag.Float64("loss", 0.2, "simulated loss rate 0..1")
		fecEvery = flag.Int("fec-interval", 3, "one recovery per this many originals")
		window   = flag.Uint("window-msec", 100, "codec window in milliseconds")
		seed     = flag.Uint64("seed", 0, "experiment seed")
	)
	flag.Parse()

	conn, err := grpc.Dial(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fatalf("dial: %v", err)
	}
	defer conn.Close()
	stub := pb.NewExperimentClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	switch *cmd {
	case "configure":
		cfg := &pb.ExperimentConfig{
			Net: &pb.NetScenario{
				Dev: *dev, UseEgress: *egress, UseIngress: *ingress,
				RttMsMean: float32(*rtt), RttJitterMs: float32(*jitter),
				BandwidthMbps: float32(*bw), LossRate: float32(*linkLoss),
			},
			Pairs: int32(*pairs), Steps: int32(*steps),
			LossRate: *loss, FecInterval: int32(*fecEvery),
			WindowMsec: uint32(*window), Seed: *seed,
		}
		if _, err := stub.Configure(ctx, cfg); err != nil {
			fatalf("configure: %v", err)
		}
		fmt.Println("configured")
	case "reset":
		if _, err := stub.Reset(ctx, &emptypb.Empty{}); err != nil {
			fatalf("reset: %v", err)
		}
		fmt.Println("reset ok")
	case "run":
		res, err := stub.Run(ctx, &emptypb.Empty{})
		if err != nil {
			fatalf("run: %v", err)
		}
		fmt.Printf("pairs=%d sent=%d delivered=%d recovered=%d effloss=%.4f%%/%.4f%%/%.4f%% (min/avg/max)\n",
			res.Pairs, res.OriginalsSent, res.Delivered, res.Recovered,
			res.EffectiveLossMin*100, res.EffectiveLossAvg*100, res.EffectiveLossMax*100)
	default:
		fatalf("unknown cmd %q", *cmd)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ccat-ctl: "+format+"\n", args...)
	os.Exit(1)
}
