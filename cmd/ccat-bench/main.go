// ccat-bench measures encode and decode throughput of the streaming codec on
// this machine and prints a JSON summary tagged with the CPU it ran on.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/francoispqt/gojay"
	"github.com/klauspost/cpuid/v2"

	"github.com/wirefec/ccat/ccat"
	"github.com/wirefec/ccat/internal/harness"
)

type report struct {
	CPU          string
	Features     string
	PacketBytes  int
	Originals    int
	EncodeMBps   float64
	RecoveryMBps float64
	DecodeMBps   float64
}

func (r *report) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("cpu", r.CPU)
	enc.StringKey("features", r.Features)
	enc.IntKey("packet_bytes", r.PacketBytes)
	enc.IntKey("originals", r.Originals)
	enc.Float64Key("encode_mbps", r.EncodeMBps)
	enc.Float64Key("recovery_mbps", r.RecoveryMBps)
	enc.Float64Key("decode_mbps", r.DecodeMBps)
}

func (r *report) IsNil() bool { return r == nil }

func main() {
	var (
		packetBytes = flag.Int("packet-bytes", 1200, "original packet size")
		originals   = flag.Int("originals", 100000, "originals to push through")
		fecEvery    = flag.Int("fec-interval", 3, "one recovery per this many originals")
	)
	flag.Parse()

	rep := &report{
		CPU:         cpuid.CPU.BrandName,
		Features:    strings.Join(cpuid.CPU.FeatureSet(), ","),
		PacketBytes: *packetBytes,
		Originals:   *originals,
	}

	sender, err := ccat.NewCodec(ccat.Settings{
		WindowMsec:      100,
		WindowPackets:   ccat.MaxWindowPackets,
		OnRecoveredData: func([]byte, uint64, any) {},
	})
	if err != nil {
		fatalf("sender: %v", err)
	}
	defer sender.Close()

	recovered := 0
	receiver, err := ccat.NewCodec(ccat.Settings{
		WindowMsec:      100,
		WindowPackets:   ccat.MaxWindowPackets,
		OnRecoveredData: func([]byte, uint64, any) { recovered++ },
	})
	if err != nil {
		fatalf("receiver: %v", err)
	}
	defer receiver.Close()

	buf := make([]byte, *packetBytes)
	recoveries := make([][]byte, 0, *originals / *fecEvery + 1)

	// Encode pass: window maintenance plus recovery emission.
	t0 := time.Now()
	for seq := 0; seq < *originals; seq++ {
		harness.SetPacket(uint64(seq), buf)
		if err := sender.EncodeOriginal(ccat.Original{SequenceNumber: uint64(seq), Data: buf}); err != nil {
			fatalf("encode original %d: %v", seq, err)
		}
		if seq%*fecEvery == *fecEvery-1 {
			var rec ccat.Recovery
			if err := sender.EncodeRecovery(&rec); err != nil {
				fatalf("encode recovery: %v", err)
			}
			recoveries = append(recoveries, ccat.AppendRecovery(nil, &rec))
		}
	}
	encodeSecs := time.Since(t0).Seconds()
	totalBytes := float64(*originals) * float64(*packetBytes)
	rep.EncodeMBps = totalBytes / encodeSecs / 1e6
	recBytes := 0
	for _, r := range recoveries {
		recBytes += len(r)
	}
	rep.RecoveryMBps = float64(recBytes) / encodeSecs / 1e6

	// Decode pass: drop every tenth original so the elimination paths run.
	t0 = time.Now()
	ri := 0
	for seq := 0; seq < *originals; seq++ {
		harness.SetPacket(uint64(seq), buf)
		if seq%10 != 9 {
			if err := receiver.DecodeOriginal(ccat.Original{SequenceNumber: uint64(seq), Data: buf}); err != nil {
				fatalf("decode original %d: %v", seq, err)
			}
		}
		if seq%*fecEvery == *fecEvery-1 && ri < len(recoveries) {
			rec, ok := ccat.ParseRecovery(recoveries[ri])
			ri++
			if !ok {
				fatalf("recovery %d failed to parse", ri-1)
			}
			if err := receiver.DecodeRecovery(rec); err != nil {
				fatalf("decode recovery: %v", err)
			}
		}
	}
	decodeSecs := time.Since(t0).Seconds()
	rep.DecodeMBps = totalBytes / decodeSecs / 1e6

	fmt.Fprintf(os.Stderr, "recovered %d of %d dropped originals\n", recovered, *originals/10)
	enc := gojay.NewEncoder(os.Stdout)
	if err := enc.EncodeObject(rep); err != nil {
		fatalf("encode report: %v", err)
	}
	fmt.Println()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ccat-bench: "+format+"\n", args...)
	os.Exit(1)
}
