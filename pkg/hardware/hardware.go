package hardware

import (
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
)

// execCommand allows mocking exec.Command
var execCommand = exec.Command
var lookPath = exec.LookPath

// GPUType represents the type of GPU available
type GPUType string

const (
	GPUNone   GPUType = "none"
	GPUNvidia GPUType = "nvidia"
	GPUAMD    GPUType = "amd"
	GPUIntel  GPUType = "intel"
)

// Capabilities represents the hardware capabilities of a device.
type Capabilities struct {
	HasNvidia bool
	HasAMD    bool
	CPUCount  int
	GPUType   GPUType
	GPUName   string
	MemoryMB  int
}

// GPUSample is one physical GPU's live telemetry, used to build a
// DevicesInfo entry for the heartbeat codec.
type GPUSample struct {
	PodID      int32
	MemTotalGB uint32
	UtilPct    uint8
}

// Detect probes the local machine for its GPU capability summary.
func Detect() *Capabilities {
	caps := &Capabilities{
		CPUCount: runtime.NumCPU(),
		GPUType:  GPUNone,
	}

	if gpuName := checkNvidia(); gpuName != "" {
		caps.HasNvidia = true
		caps.GPUType = GPUNvidia
		caps.GPUName = gpuName
	}

	if checkAMD() {
		caps.HasAMD = true
		if caps.GPUType == GPUNone {
			caps.GPUType = GPUAMD
		}
	}

	return caps
}

// DetectOSType maps the running OS to the wire-level OSType enum.
func DetectOSType() store.OSType {
	switch runtime.GOOS {
	case "linux":
		return store.OSTypeLinux
	case "windows":
		return store.OSTypeWindows
	case "darwin":
		return store.OSTypeMacOS
	default:
		return store.OSTypeNone
	}
}

// DetectGPUs queries nvidia-smi for per-GPU memory and utilization. Returns
// an empty slice (not an error) when no NVIDIA GPUs are present, since a
// device with no usable accelerator is a valid heartbeat participant.
func DetectGPUs() []GPUSample {
	if _, err := lookPath("nvidia-smi"); err != nil {
		return nil
	}

	cmd := execCommand("nvidia-smi", "--query-gpu=memory.total,utilization.gpu", "--format=csv,noheader,nounits")
	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	var samples []GPUSample
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			continue
		}
		memMB, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}
		util, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			util = 0
		}
		samples = append(samples, GPUSample{
			PodID:      int32(i),
			MemTotalGB: uint32(memMB / 1024),
			UtilPct:    uint8(clampPct(util)),
		})
	}
	return samples
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// checkNvidia checks for NVIDIA GPU and returns the GPU name
func checkNvidia() string {
	if _, err := lookPath("nvidia-smi"); err != nil {
		return ""
	}

	cmd := execCommand("nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
	output, err := cmd.Output()
	if err != nil {
		return "nvidia (unknown model)"
	}

	name := strings.TrimSpace(string(output))
	if name == "" {
		return "nvidia (unknown model)"
	}

	lines := strings.Split(name, "\n")
	return strings.TrimSpace(lines[0])
}

// checkAMD checks for AMD GPU via ROCm
func checkAMD() bool {
	if _, err := lookPath("rocm-smi"); err == nil {
		return true
	}
	return false
}
