// Package sysinfo снимает точечный снимок состояния системы для отчётов
// об ошибках и аварийных завершениях.
package sysinfo

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/procfs"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

// DefaultCPUSampleWindow — окно замера загрузки CPU.
const DefaultCPUSampleWindow = 100 * time.Millisecond

// Sampler собирает снимки системы.
type Sampler struct {
	// DiskPath — путь, для файловой системы которого считается занятость диска.
	DiskPath string
	// CPUSampleWindow — интервал между двумя замерами процессорного времени.
	CPUSampleWindow time.Duration
	// ProcRoot — корень procfs (по умолчанию /proc).
	ProcRoot string
}

// NewSampler создаёт Sampler с параметрами по умолчанию.
func NewSampler(diskPath string) *Sampler {
	return &Sampler{
		DiskPath:        diskPath,
		CPUSampleWindow: DefaultCPUSampleWindow,
		ProcRoot:        procfs.DefaultMountPoint,
	}
}

// Memory возвращает снимок без замера CPU (не блокируется).
func (s *Sampler) Memory() apperrors.SystemSnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return apperrors.SystemSnapshot{
		HeapAllocBytes: ms.HeapAlloc,
		HeapSysBytes:   ms.HeapSys,
		Goroutines:     runtime.NumGoroutine(),
	}
}

// Snapshot возвращает полный снимок: память, загрузку CPU процесса за
// CPUSampleWindow, свободное место на диске и число процессов в системе.
// Недоступные метрики остаются нулевыми.
func (s *Sampler) Snapshot(ctx context.Context) apperrors.SystemSnapshot {
	snap := s.Memory()

	if total, free, err := diskUsage(s.DiskPath); err == nil {
		snap.DiskTotalBytes = total
		snap.DiskFreeBytes = free
	}

	fs, err := procfs.NewFS(s.procRoot())
	if err != nil {
		return snap
	}
	if procs, err := fs.AllProcs(); err == nil {
		snap.ProcessCount = len(procs)
	}
	if cpu, err := s.sampleCPU(ctx, fs); err == nil {
		snap.CPUPercent = cpu
	}
	return snap
}

func (s *Sampler) procRoot() string {
	if s.ProcRoot == "" {
		return procfs.DefaultMountPoint
	}
	return s.ProcRoot
}

func (s *Sampler) sampleCPU(ctx context.Context, fs procfs.FS) (float64, error) {
	self, err := fs.Self()
	if err != nil {
		return 0, err
	}
	before, err := self.Stat()
	if err != nil {
		return 0, err
	}
	start := time.Now()

	window := s.CPUSampleWindow
	if window <= 0 {
		window = DefaultCPUSampleWindow
	}
	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
	}

	after, err := self.Stat()
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		return 0, nil
	}
	return (after.CPUTime() - before.CPUTime()) / elapsed * 100, nil
}
