package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxRetentionDays = 7

// DailyFile writes to app-YYYY-MM-DD.log in Dir and switches files when the date changes.
type DailyFile struct {
	Dir           string
	RetentionDays int
	Now           func() time.Time

	mu          sync.Mutex
	file        *os.File
	currentDate string
}

func NewDailyFile(dir string, retentionDays int) (*DailyFile, error) {
	if retentionDays <= 0 || retentionDays > maxRetentionDays {
		retentionDays = maxRetentionDays
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	d := &DailyFile{Dir: dir, RetentionDays: retentionDays, Now: time.Now}
	if err := d.rotate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DailyFile) date() string {
	return d.Now().Format("2006-01-02")
}

func (d *DailyFile) rotate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	date := d.date()
	if d.file != nil && date == d.currentDate {
		return nil
	}
	file, err := openLogFile(d.Dir, date)
	if err != nil {
		return err
	}
	if d.file != nil {
		_ = d.file.Close()
	}
	d.file = file
	d.currentDate = date
	cleanupOldLogs(d.Dir, d.RetentionDays, d.Now())
	return nil
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Write(p)
}

func (d *DailyFile) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Sync()
}

func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}

// Run checks for a date change every minute until ctx is done.
func (d *DailyFile) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := d.rotate(); err != nil {
				fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func openLogFile(logDir, date string) (*os.File, error) {
	filename := filepath.Join(logDir, fmt.Sprintf("app-%s.log", date))
	return os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func cleanupOldLogs(logDir string, retentionDays int, now time.Time) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}
	cutoff := now.AddDate(0, 0, -(retentionDays - 1))
	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		datePart := strings.TrimSuffix(strings.TrimPrefix(name, "app-"), ".log")
		logDate, err := time.Parse("2006-01-02", datePart)
		if err != nil {
			continue
		}
		if logDate.Before(cutoff) {
			_ = os.Remove(filepath.Join(logDir, name))
		}
	}
}

// New builds a production JSON logger that tees stdout and the rotating file.
func New(file *DailyFile) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)
	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zap.InfoLevel)}
	if file != nil {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(file), zap.InfoLevel))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
