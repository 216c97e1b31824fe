// Package metrics collects host resource utilization for heartbeat reporting.
package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostMetrics is a snapshot of current host resource usage. Values are
// percentages (0-100).
type HostMetrics struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemPercent  float64 `json:"mem_percent"`
	DiskPercent float64 `json:"disk_percent"`
}

// Collect samples CPU, memory, and disk (root mount) utilization.
// Any individual sampler failing leaves that field at zero rather than
// failing the whole heartbeat — a heartbeat with partial metrics is still
// useful, a missing heartbeat is not.
func Collect(ctx context.Context) HostMetrics {
	var m HostMetrics

	if pcts, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(pcts) > 0 {
		m.CPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		m.MemPercent = vm.UsedPercent
	}
	if du, err := disk.UsageWithContext(ctx, "/"); err == nil && du != nil {
		m.DiskPercent = du.UsedPercent
	}

	return m
}
