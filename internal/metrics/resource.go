package metrics

import (
	"github.com/shirou/gopsutil/v4/process"
)

// SampleResourceUsage reads a running daemon's CPU/memory usage via gopsutil
// and records it under name, replacing the previous sample. If pid died
// between ticks, or any read fails, nothing is recorded and the previous
// sample stays (the caller's monitor loop only calls this while it still
// believes the daemon is Running).
func SampleResourceUsage(name string, pid int32) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return
	}
	cpuPct, err := proc.CPUPercent()
	if err != nil {
		return
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil || memInfo == nil {
		return
	}
	SetResourceUsage(name, memInfo.RSS, cpuPct)
}
