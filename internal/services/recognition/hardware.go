package recognition

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// HardwareProbe reports how many accelerators are usable for inference
type HardwareProbe interface {
	AcceleratorCount(ctx context.Context) int
}

// NvidiaSMIProbe counts GPUs listed by `nvidia-smi -L`. A missing binary or a
// failing command counts as no accelerator.
type NvidiaSMIProbe struct {
	Binary  string
	Timeout time.Duration
}

// NewNvidiaSMIProbe returns a probe using nvidia-smi from PATH
func NewNvidiaSMIProbe() *NvidiaSMIProbe {
	return &NvidiaSMIProbe{Binary: "nvidia-smi", Timeout: 5 * time.Second}
}

// AcceleratorCount implements HardwareProbe
func (p *NvidiaSMIProbe) AcceleratorCount(ctx context.Context) int {
	if _, err := lookPath(p.Binary); err != nil {
		return 0
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	out, err := commandContext(ctx, p.Binary, "-L").Output()
	if err != nil {
		slog.Debug("nvidia-smi failed, assuming no GPU", "error", err)
		return 0
	}
	return countGPULines(out)
}

func countGPULines(out []byte) int {
	count := 0
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if strings.HasPrefix(strings.TrimSpace(scanner.Text()), "GPU ") {
			count++
		}
	}
	return count
}

// StaticProbe reports a fixed accelerator count
type StaticProbe int

// AcceleratorCount implements HardwareProbe
func (s StaticProbe) AcceleratorCount(context.Context) int {
	return int(s)
}

// ResolveCompute picks the device and compute profile for a run. A forced
// device skips the probe. When no profile is requested, GPUs use int8_float16
// and CPUs use int8.
func ResolveCompute(ctx context.Context, probe HardwareProbe, device Device, requested ComputeProfile) (Device, ComputeProfile) {
	resolved := device
	if resolved == "" || resolved == DeviceAuto {
		resolved = DeviceCPU
		if probe != nil && probe.AcceleratorCount(ctx) > 0 {
			resolved = DeviceCUDA
		}
	}

	if requested != "" {
		return resolved, requested
	}
	if resolved == DeviceCUDA {
		return resolved, ComputeInt8Float16
	}
	return resolved, ComputeInt8
}
