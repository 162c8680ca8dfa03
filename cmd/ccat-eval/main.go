// ccat-eval sweeps effective loss for the streaming codec across loss rates
// and FEC intervals, running many independent sender/receiver pairs in
// parallel, and can report fixed-block RS and RaptorQ baselines under the
// same loss model for comparison.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/francoispqt/gojay"
	"golang.org/x/sync/errgroup"

	"github.com/wirefec/ccat/internal/baseline"
	"github.com/wirefec/ccat/internal/dropper"
	"github.com/wirefec/ccat/internal/harness"
	"github.com/wirefec/ccat/internal/pcg"
)

type record struct {
	Scheme      string
	Loss        float64
	FECInterval int
	Runs        int
	Sent        uint64
	Delivered   uint64
	Recovered   uint64
	EffLossMin  float64
	EffLossAvg  float64
	EffLossMax  float64
	ElapsedMS   int64
}

func (r *record) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("scheme", r.Scheme)
	enc.Float64Key("loss", r.Loss)
	enc.IntKey("fec_interval", r.FECInterval)
	enc.IntKey("runs", r.Runs)
	enc.Uint64Key("sent", r.Sent)
	enc.Uint64Key("delivered", r.Delivered)
	enc.Uint64Key("recovered", r.Recovered)
	enc.Float64Key("eff_loss_min", r.EffLossMin)
	enc.Float64Key("eff_loss_avg", r.EffLossAvg)
	enc.Float64Key("eff_loss_max", r.EffLossMax)
	enc.Int64Key("elapsed_ms", r.ElapsedMS)
}

func (r *record) IsNil() bool { return r == nil }

func parseLosses(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("bad loss %q: %w", p, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func main() {
	var (
		runs     = flag.Int("runs", 100, "independent sender/receiver pairs per point")
		steps    = flag.Int("steps", 10000, "originals per pair")
		lossStr  = flag.String("loss", "0.05,0.1,0.2", "comma-separated loss probabilities")
		fecEvery = flag.Int("fec-interval", 3, "one recovery per this many originals")
		window   = flag.Uint("window-msec", 100, "codec window in milliseconds")
		maxBytes = flag.Int("max-bytes", 1000, "ccat original sizes are drawn from 1..max-bytes; block baselines use max-bytes capped at 1500")
		seed     = flag.Uint64("seed", 0, "experiment seed")
		schemes  = flag.String("schemes", "ccat", "comma-separated: ccat,rs,raptorq")
		jsonOut  = flag.String("json", "", "write JSON records to this file")
		workers  = flag.Int("workers", runtime.NumCPU(), "parallel pairs")
	)
	flag.Parse()

	log := slog.NewBackend(os.Stderr).Logger("EVAL")
	log.SetLevel(slog.LevelInfo)

	losses, err := parseLosses(*lossStr)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	var records []*record
	for _, scheme := range strings.Split(*schemes, ",") {
		scheme = strings.TrimSpace(scheme)
		for _, loss := range losses {
			t0 := time.Now()
			var rec *record
			switch scheme {
			case "ccat":
				rec, err = runStreaming(*runs, *steps, loss, *fecEvery, uint32(*window), *maxBytes, *seed, *workers)
			case "rs", "raptorq":
				rec, err = runBlockBaseline(scheme, *runs, *steps, loss, *fecEvery, *maxBytes, *seed)
			default:
				err = fmt.Errorf("unknown scheme %q", scheme)
			}
			if err != nil {
				log.Errorf("%s loss=%.3f: %v", scheme, loss, err)
				os.Exit(1)
			}
			rec.ElapsedMS = time.Since(t0).Milliseconds()
			records = append(records, rec)
			log.Infof("%s loss=%.3f runs=%d effloss=%.4f%%/%.4f%%/%.4f%% (min/avg/max) in %dms",
				scheme, loss, rec.Runs, rec.EffLossMin*100, rec.EffLossAvg*100, rec.EffLossMax*100, rec.ElapsedMS)
		}
	}

	fmt.Println("scheme,loss,fec_interval,runs,sent,delivered,recovered,eff_loss_avg")
	for _, r := range records {
		fmt.Printf("%s,%.4f,%d,%d,%d,%d,%d,%.6f\n",
			r.Scheme, r.Loss, r.FECInterval, r.Runs, r.Sent, r.Delivered, r.Recovered, r.EffLossAvg)
	}

	if *jsonOut != "" {
		f, err := os.Create(*jsonOut)
		if err != nil {
			log.Errorf("create %s: %v", *jsonOut, err)
			os.Exit(1)
		}
		enc := gojay.NewEncoder(f)
		for _, r := range records {
			if err := enc.EncodeObject(r); err != nil {
				log.Errorf("encode: %v", err)
				os.Exit(1)
			}
			fmt.Fprintln(f)
		}
		if err := f.Close(); err != nil {
			log.Errorf("close %s: %v", *jsonOut, err)
			os.Exit(1)
		}
		log.Infof("wrote %d records to %s", len(records), *jsonOut)
	}
}

// runStreaming fans independent codec pairs out across workers.
func runStreaming(runs, steps int, loss float64, fecEvery int, window uint32, maxBytes int, seed uint64, workers int) (*record, error) {
	rec := &record{Scheme: "ccat", Loss: loss, FECInterval: fecEvery, Runs: runs}
	var mu sync.Mutex
	var eloss harness.StatsCollector

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for run := 0; run < runs; run++ {
		run := run
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pair, err := harness.NewPair(harness.Config{
				WindowMsec:  window,
				LossRate:    loss,
				FECInterval: fecEvery,
				MaxBytes:    maxBytes,
			}, uint64(run), seed)
			if err != nil {
				return err
			}
			defer pair.Close()
			for i := 0; i < steps; i++ {
				if err := pair.Step(); err != nil {
					return err
				}
			}
			mu.Lock()
			rec.Sent += pair.Sent()
			rec.Delivered += pair.Delivered
			rec.Recovered += pair.Recovered
			eloss.Update(pair.EffectiveLoss())
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	rec.EffLossMin = eloss.Min
	rec.EffLossAvg = eloss.Average()
	rec.EffLossMax = eloss.Max
	return rec, nil
}

// runBlockBaseline measures a fixed-block code under the same Bernoulli loss
// model. Block shape follows the FEC interval: K sources and K/fecEvery
// repairs per block.
func runBlockBaseline(scheme string, runs, steps int, loss float64, fecEvery, maxBytes int, seed uint64) (*record, error) {
	const k = 12
	r := k / fecEvery
	if r < 1 {
		r = 1
	}
	n := k + r
	symbolLen := maxBytes
	if symbolLen > 1500 {
		symbolLen = 1500
	}

	var codec baseline.BlockCodec
	var err error
	switch scheme {
	case "rs":
		codec, err = baseline.NewRS(n, k)
	case "raptorq":
		codec, err = baseline.NewRaptorQ(n, k, symbolLen)
	}
	if err != nil {
		return nil, err
	}

	rec := &record{Scheme: scheme, Loss: loss, FECInterval: fecEvery, Runs: runs}
	var eloss harness.StatsCollector
	blocks := steps / k
	for run := 0; run < runs; run++ {
		var rng pcg.Rand
		rng.Seed(uint64(run), seed)
		drop := dropper.New(loss, &rng)

		var sent, delivered uint64
		src := make([][]byte, k)
		for b := 0; b < blocks; b++ {
			for i := range src {
				src[i] = make([]byte, symbolLen)
				harness.SetPacket(uint64(b*k+i), src[i])
			}
			symbols, err := codec.Encode(src)
			if err != nil {
				return nil, err
			}
			recv := make([][]byte, n)
			direct := 0
			for i, s := range symbols {
				if drop.Drop() {
					continue
				}
				recv[i] = s
				if i < k {
					direct++
				}
			}
			sent += uint64(k)
			if out, ok := codec.Decode(recv); ok {
				delivered += uint64(len(out))
			} else {
				delivered += uint64(direct)
			}
		}
		rec.Sent += sent
		rec.Delivered += delivered
		eloss.Update(1 - float64(delivered)/float64(sent))
	}
	rec.EffLossMin = eloss.Min
	rec.EffLossAvg = eloss.Average()
	rec.EffLossMax = eloss.Max
	return rec, nil
}
