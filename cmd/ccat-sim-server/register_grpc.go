//go:build grpcproto

package main

import (
	"context"

	"github.com/decred/slog"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	pb "github.com/wirefec/ccat/gen/ccatsim"
	"github.com/wirefec/ccat/internal/env"
	"github.com/wirefec/ccat/internal/sim"
)

// experimentGRPC adapts env.Server onto the generated service interface.
type experimentGRPC struct {
	pb.UnimplementedExperimentServer
	inner *env.Server
	log   slog.Logger
}

func init() {
	registerExperiment = func(grpcSrv *grpc.Server, inner *env.Server, log slog.Logger) {
		pb.RegisterExperimentServer(grpcSrv, &experimentGRPC{inner: inner, log: log})
	}
}

func toConfig(cfg *pb.ExperimentConfig) *env.ExperimentConfig {
	if cfg == nil {
		return &env.ExperimentConfig{}
	}
	out := &env.ExperimentConfig{
		Pairs:       int(cfg.Pairs),
		Steps:       int(cfg.Steps),
		LossRate:    cfg.LossRate,
		FECInterval: int(cfg.FecInterval),
		WindowMsec:  cfg.WindowMsec,
		MaxBytes:    int(cfg.MaxBytes),
		Seed:        cfg.Seed,
	}
	if n := cfg.Net; n != nil {
		out.Net = sim.Scenario{
			Dev: n.Dev, UseEgress: n.UseEgress, UseIngress: n.UseIngress,
			RttMsMean: n.RttMsMean, RttJitterMs: n.RttJitterMs,
			BandwidthMbps: n.BandwidthMbps, LossRate: n.LossRate, ReorderRate: n.ReorderRate,
		}
	}
	return out
}

func (e *experimentGRPC) Configure(ctx context.Context, cfg *pb.ExperimentConfig) (*emptypb.Empty, error) {
	if err := e.inner.Configure(ctx, toConfig(cfg)); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (e *experimentGRPC) Reset(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := e.inner.Reset(ctx); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (e *experimentGRPC) Run(ctx context.Context, _ *emptypb.Empty) (*pb.SweepResult, error) {
	res, err := e.inner.Run(ctx)
	if err != nil {
		return nil, err
	}
	recordResult(res)
	return &pb.SweepResult{
		Pairs:            int32(res.Pairs),
		OriginalsSent:    res.OriginalsSent,
		Delivered:        res.Delivered,
		Recovered:        res.Recovered,
		EffectiveLossMin: res.EffLossMin,
		EffectiveLossAvg: res.EffLossAvg,
		EffectiveLossMax: res.EffLossMax,
	}, nil
}
