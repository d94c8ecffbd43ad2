package services

import (
	"context"
	"os"
	"time"

	"riskscreen-backend/internal/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

const maxDashboardHistory = 500

type HostMetrics struct {
	ProcessRSSBytes   int64
	SystemMemoryTotal int64
	SystemMemoryUsed  int64
	DiskTotalBytes    int64
	DiskUsedBytes     int64
	ProcessCPULoad    float64
	SystemCPULoad     float64
}

// CaptureHostMetrics reads process and host usage; unavailable readings stay zero.
func CaptureHostMetrics(diskPath string) HostMetrics {
	var metrics HostMetrics
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if rss, err := proc.MemoryInfo(); err == nil && rss != nil {
			metrics.ProcessRSSBytes = int64(rss.RSS)
		}
		if cpuPerc, err := proc.CPUPercent(); err == nil {
			metrics.ProcessCPULoad = cpuPerc / 100.0
		}
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		metrics.SystemMemoryTotal = int64(memStat.Total)
		metrics.SystemMemoryUsed = int64(memStat.Total - memStat.Available)
	}
	diskStat, err := disk.Usage(diskPath)
	if err != nil {
		diskStat, err = disk.Usage("/")
	}
	if err == nil {
		metrics.DiskTotalBytes = int64(diskStat.Total)
		metrics.DiskUsedBytes = int64(diskStat.Used)
	}
	if sysCPU, err := cpu.Percent(0, false); err == nil && len(sysCPU) > 0 {
		metrics.SystemCPULoad = sysCPU[0] / 100.0
	}
	return metrics
}

type DashboardSampler struct {
	Store    DashboardStore
	Hub      *AlertHub
	DiskPath string
	Log      *zap.Logger
	Now      func() time.Time
	// Capture is swapped in tests; defaults to CaptureHostMetrics.
	Capture func(diskPath string) HostMetrics
}

func (s *DashboardSampler) Sample(ctx context.Context) (models.DashboardSample, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	capture := s.Capture
	if capture == nil {
		capture = CaptureHostMetrics
	}
	host := capture(s.DiskPath)
	pending, err := s.Store.CountAppointments(ctx, models.AppointmentPending)
	if err != nil {
		return models.DashboardSample{}, WrapError(err, "count pending appointments")
	}
	highRisk, err := s.Store.CountHighRiskSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return models.DashboardSample{}, WrapError(err, "count high risk surveys")
	}
	sample := models.DashboardSample{
		CapturedAt:          now,
		ProcessRSSBytes:     host.ProcessRSSBytes,
		SystemMemoryTotal:   host.SystemMemoryTotal,
		SystemMemoryUsed:    host.SystemMemoryUsed,
		DiskTotalBytes:      host.DiskTotalBytes,
		DiskUsedBytes:       host.DiskUsedBytes,
		ProcessCPULoad:      host.ProcessCPULoad,
		SystemCPULoad:       host.SystemCPULoad,
		PendingAppointments: pending,
		HighRiskLastDay:     highRisk,
	}
	if err := s.Store.InsertDashboardSample(ctx, &sample); err != nil {
		return models.DashboardSample{}, WrapError(err, "store dashboard sample")
	}
	if s.Hub != nil {
		s.Hub.PublishDashboard(sample)
	}
	return sample, nil
}

// Run samples on every tick until ctx is cancelled.
func (s *DashboardSampler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log := loggerOrNop(s.Log)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.Sample(ctx); err != nil {
				log.Warn("dashboard sample failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *DashboardSampler) History(ctx context.Context, limit int) ([]models.DashboardSample, error) {
	if limit <= 0 {
		limit = 120
	}
	if limit > maxDashboardHistory {
		limit = maxDashboardHistory
	}
	items, err := s.Store.LatestDashboardSamples(ctx, limit)
	if err != nil {
		return nil, WrapError(err, "load dashboard history")
	}
	if items == nil {
		items = []models.DashboardSample{}
	}
	return items, nil
}
