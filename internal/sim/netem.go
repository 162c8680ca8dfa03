// Package sim shapes a network device with Linux tc so codec experiments can
// run over emulated lossy links. Egress rules attach to the device itself;
// ingress shaping is redirected through an IFB device.
package sim

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Scenario describes one emulated link.
type Scenario struct {
	Dev           string
	UseEgress     bool
	UseIngress    bool
	RttMsMean     float32
	RttJitterMs   float32
	BandwidthMbps float32 // <=0 means unlimited
	LossRate      float32
	ReorderRate   float32
}

// Manager owns the tc state for one device.
type Manager struct {
	dev string
	ifb string
}

func NewManager() *Manager { return &Manager{} }

// Apply installs the scenario, replacing any rules from a previous call.
func (m *Manager) Apply(sc *Scenario) error {
	if sc == nil {
		return nil
	}
	if sc.Dev == "" {
		return fmt.Errorf("sim: device not set")
	}
	m.dev = sc.Dev
	if sc.UseEgress {
		if err := m.shape(m.dev, sc); err != nil {
			return err
		}
	}
	if sc.UseIngress {
		if err := m.ensureIFB(); err != nil {
			return err
		}
		if err := m.redirectIngressToIFB(m.dev, m.ifb); err != nil {
			return err
		}
		if err := m.shape(m.ifb, sc); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup removes all installed rules and the IFB device.
func (m *Manager) Cleanup() error {
	if m.dev != "" {
		_ = run("tc", "qdisc", "del", "dev", m.dev, "root")
		_ = run("tc", "qdisc", "del", "dev", m.dev, "ingress")
	}
	if m.ifb != "" {
		_ = run("tc", "qdisc", "del", "dev", m.ifb, "root")
		_ = run("ip", "link", "set", m.ifb, "down")
		_ = run("ip", "link", "del", m.ifb)
	}
	return nil
}

// shape resets the device's root qdisc and installs either a bare netem root
// (unlimited bandwidth) or an HTB root with a netem child.
func (m *Manager) shape(dev string, sc *Scenario) error {
	_ = run("tc", "qdisc", "del", "dev", dev, "root")
	if sc.BandwidthMbps <= 0 {
		args := []string{"qdisc", "add", "dev", dev, "root", "handle", "10:", "netem"}
		return run("tc", append(args, netemArgs(sc)...)...)
	}
	if err := run("tc", "qdisc", "add", "dev", dev, "root", "handle", "1:", "htb", "default", "1"); err != nil {
		return err
	}
	rate := fmt.Sprintf("%.0fmbit", sc.BandwidthMbps)
	if err := run("tc", "class", "replace", "dev", dev, "parent", "1:", "classid", "1:1", "htb", "rate", rate, "ceil", rate); err != nil {
		return err
	}
	args := []string{"qdisc", "add", "dev", dev, "parent", "1:1", "handle", "100:", "netem"}
	return run("tc", append(args, netemArgs(sc)...)...)
}

func netemArgs(sc *Scenario) []string {
	args := []string{
		"delay", fmt.Sprintf("%.2fms", sc.RttMsMean), fmt.Sprintf("%.2fms", sc.RttJitterMs),
		"loss", fmt.Sprintf("%.3f%%", sc.LossRate*100.0),
	}
	if sc.ReorderRate > 0 {
		args = append(args, "reorder", fmt.Sprintf("%.2f%%", sc.ReorderRate*100.0), "gap", "5")
	}
	return args
}

func (m *Manager) ensureIFB() error {
	m.ifb = "ifb0"
	_ = run("modprobe", "ifb", "numifbs=1")
	_ = run("ip", "link", "add", m.ifb, "type", "ifb")
	return run("ip", "link", "set", m.ifb, "up")
}

func (m *Manager) redirectIngressToIFB(dev, ifb string) error {
	if err := run("tc", "qdisc", "replace", "dev", dev, "handle", "ffff:", "ingress"); err != nil {
		return err
	}
	return run("tc", "filter", "replace", "dev", dev, "parent", "ffff:", "protocol", "all",
		"u32", "match", "u32", "0", "0", "action", "mirred", "egress", "redirect", "dev", ifb)
}

func run(cmd string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c := exec.CommandContext(ctx, cmd, args...)
	out, err := c.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %v\n%s", cmd, args, err, string(out))
	}
	return nil
}
