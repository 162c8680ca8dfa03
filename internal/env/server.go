// Package env hosts the experiment control service used by ccat-sim-server:
// it applies link scenarios through sim and runs in-process codec loss
// sweeps on request.
package env

import (
	"context"
	"fmt"

	"github.com/decred/slog"

	"github.com/wirefec/ccat/internal/harness"
	"github.com/wirefec/ccat/internal/sim"
)

// Netem abstracts the tc layer so tests can stub it.
type Netem interface {
	Apply(*sim.Scenario) error
	Cleanup() error
}

// ExperimentConfig selects a link scenario plus codec sweep parameters.
type ExperimentConfig struct {
	Net         sim.Scenario
	Pairs       int
	Steps       int
	LossRate    float64
	FECInterval int
	WindowMsec  uint32
	MaxBytes    int
	Seed        uint64
}

// ExperimentResult aggregates one sweep.
type ExperimentResult struct {
	Pairs         int
	OriginalsSent uint64
	Delivered     uint64
	Recovered     uint64
	EffLossMin    float64
	EffLossAvg    float64
	EffLossMax    float64
}

// Server runs experiments and owns the device shaping state.
type Server struct {
	netem Netem
	log   slog.Logger
	cfg   *ExperimentConfig
}

func NewServer(netem Netem, log slog.Logger) *Server {
	return &Server{netem: netem, log: log}
}

// Configure applies the link scenario and stores the sweep parameters.
func (s *Server) Configure(ctx context.Context, cfg *ExperimentConfig) error {
	if cfg.Net.Dev != "" {
		if err := s.netem.Apply(&cfg.Net); err != nil {
			return fmt.Errorf("env: apply scenario: %w", err)
		}
		s.log.Infof("applied scenario dev=%s loss=%.3f rtt=%.1fms", cfg.Net.Dev, cfg.Net.LossRate, cfg.Net.RttMsMean)
	}
	s.cfg = cfg
	return nil
}

// Reset re-applies the stored scenario.
func (s *Server) Reset(ctx context.Context) error {
	if s.cfg == nil || s.cfg.Net.Dev == "" {
		return nil
	}
	return s.netem.Apply(&s.cfg.Net)
}

// Run executes the configured sweep in process and returns the aggregate.
func (s *Server) Run(ctx context.Context) (*ExperimentResult, error) {
	if s.cfg == nil {
		return nil, fmt.Errorf("env: not configured")
	}
	cfg := s.cfg
	pairs := cfg.Pairs
	if pairs <= 0 {
		pairs = 100
	}
	steps := cfg.Steps
	if steps <= 0 {
		steps = 10000
	}
	window := cfg.WindowMsec
	if window == 0 {
		window = 100
	}

	res := &ExperimentResult{Pairs: pairs}
	var eloss harness.StatsCollector
	for i := 0; i < pairs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pair, err := harness.NewPair(harness.Config{
			WindowMsec:  window,
			LossRate:    cfg.LossRate,
			FECInterval: cfg.FECInterval,
			MaxBytes:    cfg.MaxBytes,
		}, uint64(i), cfg.Seed)
		if err != nil {
			return nil, err
		}
		for j := 0; j < steps; j++ {
			if err := pair.Step(); err != nil {
				pair.Close()
				return nil, err
			}
		}
		res.OriginalsSent += pair.Sent()
		res.Delivered += pair.Delivered
		res.Recovered += pair.Recovered
		eloss.Update(pair.EffectiveLoss())
		pair.Close()
	}
	res.EffLossMin = eloss.Min
	res.EffLossAvg = eloss.Average()
	res.EffLossMax = eloss.Max
	s.log.Infof("sweep done pairs=%d sent=%d delivered=%d recovered=%d effloss=%.4f%%/%.4f%%/%.4f%%",
		pairs, res.OriginalsSent, res.Delivered, res.Recovered,
		res.EffLossMin*100, res.EffLossAvg*100, res.EffLossMax*100)
	return res, nil
}

// Close removes shaping rules.
func (s *Server) Close() error {
	return s.netem.Cleanup()
}
