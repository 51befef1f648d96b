package health

import (
	"errors"
	"testing"
)

func TestReportStatus(t *testing.T) {
	up := func() bool { return true }
	down := func() bool { return false }

	tests := []struct {
		name string
		deps []Dependency
		want string
	}{
		{"no dependencies", nil, StatusOK},
		{"all up", []Dependency{{"registry", up}, {"store", up}}, StatusOK},
		{"store down", []Dependency{{"registry", up}, {"store", down}}, StatusDegraded},
		{"nil check", []Dependency{{"registry", nil}}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReporter(tt.deps...)
			r.cpuPercent = func() (float64, error) { return 12.5, nil }
			r.memPercent = func() (float64, error) { return 40, nil }

			rep := r.Report()
			if rep.Status != tt.want {
				t.Fatalf("status = %q, want %q", rep.Status, tt.want)
			}
			if len(rep.Dependencies) != len(tt.deps) {
				t.Fatalf("dependencies = %d, want %d", len(rep.Dependencies), len(tt.deps))
			}
			if rep.Host.CPULoadPercent != 12.5 || rep.Host.MemoryUsedPercent != 40 {
				t.Fatalf("host = %+v", rep.Host)
			}
			if rep.Host.Goroutines == 0 {
				t.Fatal("goroutines not reported")
			}
		})
	}
}

func TestReportToleratesMetricErrors(t *testing.T) {
	r := NewReporter()
	r.cpuPercent = func() (float64, error) { return 0, errors.New("no /proc") }
	r.memPercent = func() (float64, error) { return 0, errors.New("no /proc") }

	rep := r.Report()
	if rep.Status != StatusOK {
		t.Fatalf("status = %q, want ok", rep.Status)
	}
	if rep.Host.CPULoadPercent != 0 || rep.Host.MemoryUsedPercent != 0 {
		t.Fatalf("host = %+v, want zero load", rep.Host)
	}
}
