// Package health reports dependency availability and host load.
package health

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Dependency is a collaborator whose availability was decided at startup.
type Dependency struct {
	Name      string
	Available func() bool
}

type DependencyStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

type HostMetrics struct {
	CPULoadPercent    float64 `json:"cpu_load_percent"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	ProcessMemoryMB   float64 `json:"process_memory_mb"`
	Goroutines        int     `json:"goroutines"`
}

type Report struct {
	Status        string             `json:"status"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Host          HostMetrics        `json:"host"`
}

type Reporter struct {
	started time.Time
	deps    []Dependency

	cpuPercent func() (float64, error)
	memPercent func() (float64, error)
}

func NewReporter(deps ...Dependency) *Reporter {
	return &Reporter{
		started:    time.Now(),
		deps:       deps,
		cpuPercent: hostCPUPercent,
		memPercent: hostMemPercent,
	}
}

// Report never fails; unreadable host metrics are reported as zero.
func (r *Reporter) Report() Report {
	rep := Report{
		Status:        StatusOK,
		UptimeSeconds: int64(time.Since(r.started).Seconds()),
		Dependencies:  make([]DependencyStatus, 0, len(r.deps)),
	}

	for _, d := range r.deps {
		ok := d.Available != nil && d.Available()
		if !ok {
			rep.Status = StatusDegraded
		}
		rep.Dependencies = append(rep.Dependencies, DependencyStatus{Name: d.Name, Available: ok})
	}

	if v, err := r.cpuPercent(); err == nil {
		rep.Host.CPULoadPercent = v
	}
	if v, err := r.memPercent(); err == nil {
		rep.Host.MemoryUsedPercent = v
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	rep.Host.ProcessMemoryMB = float64(m.Alloc) / (1024 * 1024)
	rep.Host.Goroutines = runtime.NumGoroutine()

	return rep
}

func hostCPUPercent() (float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}

func hostMemPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}
