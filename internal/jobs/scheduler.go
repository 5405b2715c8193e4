package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"taskboard/api/internal/models"
)

const licenseReportJob = "license_report"

// StatsSource is implemented by *repository.LicenseRepository.
type StatsSource interface {
	Stats(ctx context.Context) (models.LicenseKeyStats, error)
}

// StatsRecorder is implemented by *metrics.Metrics.
type StatsRecorder interface {
	SetLicenseKeyStats(stats models.LicenseKeyStats)
	JobRun(job string, err error)
}

type Scheduler struct {
	cron     *cron.Cron
	stats    StatsSource
	recorder StatsRecorder
	spec     string
	timeout  time.Duration
	log      zerolog.Logger
}

// NewScheduler schedules the license report on spec (six fields, seconds first).
// An empty spec disables the job.
func NewScheduler(stats StatsSource, recorder StatsRecorder, spec string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:     c,
		stats:    stats,
		recorder: recorder,
		spec:     spec,
		timeout:  30 * time.Second,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.stats == nil || s.spec == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.reportLicenses); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("job", licenseReportJob).Str("spec", s.spec).Msg("scheduler started")
	return nil
}

// Stop halts scheduling. The returned context is done once a running report finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) reportLicenses() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunLicenseReport(ctx); err != nil {
		s.log.Error().Err(err).Str("job", licenseReportJob).Msg("license report failed")
	}
}

// RunLicenseReport reads the key counts, logs them and publishes them as gauges.
func (s *Scheduler) RunLicenseReport(ctx context.Context) (models.LicenseKeyStats, error) {
	stats, err := s.stats.Stats(ctx)
	if s.recorder != nil {
		s.recorder.JobRun(licenseReportJob, err)
	}
	if err != nil {
		return models.LicenseKeyStats{}, err
	}

	if s.recorder != nil {
		s.recorder.SetLicenseKeyStats(stats)
	}
	s.log.Info().
		Str("job", licenseReportJob).
		Int64("total", stats.Total).
		Int64("used", stats.Used).
		Int64("expired", stats.Expired).
		Int64("multi_use", stats.MultiUse).
		Int64("activations", stats.Activations).
		Msg("license key report")
	return stats, nil
}
