// Package diagnostics collects a host snapshot for support dumps and
// startup logging. Collection is best effort: probes that fail leave
// their fields zero rather than failing the snapshot.
package diagnostics

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("diagnostics")
	if logger == nil {
		logger = slog.Default().With("service", "diagnostics")
	}
}

// HostSnapshot describes the machine a run executed on.
type HostSnapshot struct {
	CollectedAt time.Time `json:"collected_at"`

	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Platform      string `json:"platform"`
	KernelVersion string `json:"kernel_version"`
	Arch          string `json:"arch"`
	GoVersion     string `json:"go_version"`
	Container     bool   `json:"container"`
	UptimeSeconds uint64 `json:"uptime_seconds"`

	CPUModel      string   `json:"cpu_model"`
	LogicalCores  int      `json:"logical_cores"`
	PhysicalCores int      `json:"physical_cores"`
	SIMDFeatures  []string `json:"simd_features"`
	CPUPercent    float64  `json:"cpu_percent"`

	MemTotalBytes  uint64  `json:"mem_total_bytes"`
	MemUsedPercent float64 `json:"mem_used_percent"`

	DiskPath        string  `json:"disk_path"`
	DiskTotalBytes  uint64  `json:"disk_total_bytes"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
}

// simdFeatures are the vector extensions that matter for FFT-heavy
// cross-correlation throughput.
var simdFeatures = []cpuid.FeatureID{
	cpuid.SSE42,
	cpuid.AVX,
	cpuid.AVX2,
	cpuid.AVX512F,
	cpuid.FMA3,
	cpuid.ASIMD,
}

// Collect gathers the host snapshot. Disk usage is probed at diskPath;
// empty means the working directory.
func Collect(diskPath string) *HostSnapshot {
	if diskPath == "" {
		diskPath = "."
	}

	s := &HostSnapshot{
		CollectedAt: time.Now().UTC(),
		Arch:        runtime.GOARCH,
		GoVersion:   runtime.Version(),
		Container:   conf.RunningInContainer(),
		CPUModel:    cpuid.CPU.BrandName,
		DiskPath:    diskPath,
	}

	s.LogicalCores = cpuid.CPU.LogicalCores
	if s.LogicalCores <= 0 {
		s.LogicalCores = runtime.NumCPU()
	}
	s.PhysicalCores = cpuid.CPU.PhysicalCores

	for _, f := range simdFeatures {
		if cpuid.CPU.Has(f) {
			s.SIMDFeatures = append(s.SIMDFeatures, f.String())
		}
	}

	if info, err := host.Info(); err == nil {
		s.Hostname = info.Hostname
		s.OS = info.OS
		s.Platform = info.Platform + " " + info.PlatformVersion
		s.KernelVersion = info.KernelVersion
		s.UptimeSeconds = info.Uptime
	} else {
		logger.Debug("host info probe failed", "error", err)
	}

	// Instant reading; a 1-second sample would be more accurate but
	// blocks the caller.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		s.CPUPercent = percents[0]
	} else if err != nil {
		logger.Debug("cpu probe failed", "error", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemTotalBytes = vm.Total
		s.MemUsedPercent = vm.UsedPercent
	} else {
		logger.Debug("memory probe failed", "error", err)
	}

	if usage, err := disk.Usage(diskPath); err == nil {
		s.DiskTotalBytes = usage.Total
		s.DiskUsedPercent = usage.UsedPercent
	} else {
		logger.Debug("disk probe failed", "error", err, "path", diskPath)
	}

	return s
}

// LogAttrs returns the snapshot as slog attributes for startup logging.
func (s *HostSnapshot) LogAttrs() []any {
	return []any{
		"os", s.OS,
		"platform", s.Platform,
		"arch", s.Arch,
		"container", s.Container,
		"cpu", s.CPUModel,
		"logical_cores", s.LogicalCores,
		"simd", s.SIMDFeatures,
		"mem_total_mb", s.MemTotalBytes / 1024 / 1024,
	}
}
