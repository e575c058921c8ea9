package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
)

// CronService manages scheduled background jobs: penalty accrual, due-date
// reminders and stale session expiry.
type CronService struct {
	cron        *cron.Cron
	gnplSvc     *GnplService
	sessionRepo *database.SessionRepository
	jobs        config.JobsConfig
	sessionTTL  time.Duration
	logger      *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(
	gnplSvc *GnplService,
	sessionRepo *database.SessionRepository,
	jobs config.JobsConfig,
	sessionTTL time.Duration,
	logger *logrus.Logger,
) *CronService {
	// Cron specs include a seconds field.
	c := cron.New(cron.WithSeconds())

	return &CronService{
		cron:        c,
		gnplSvc:     gnplSvc,
		sessionRepo: sessionRepo,
		jobs:        jobs,
		sessionTTL:  sessionTTL,
		logger:      logger,
	}
}

// Start schedules and starts all jobs
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.jobs.PenaltyAccrualSpec, s.accruePenaltiesJob); err != nil {
		return fmt.Errorf("failed to schedule penalty accrual job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.jobs.ReminderSpec, s.sendRemindersJob); err != nil {
		return fmt.Errorf("failed to schedule reminder job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.jobs.SessionExpirySpec, s.expireSessionsJob); err != nil {
		return fmt.Errorf("failed to schedule session expiry job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// accruePenaltiesJob accrues late penalties on past-due accounts. Safe to
// rerun; the period counter makes each window accrue once.
func (s *CronService) accruePenaltiesJob() {
	start := time.Now()
	count, err := s.gnplSvc.AccruePenalties(start)
	if err != nil {
		s.logger.WithField("error", err.Error()).Error("Penalty accrual job failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"accounts_accrued": count,
		"duration":         time.Since(start).String(),
	}).Info("Penalty accrual job completed")
}

// sendRemindersJob notifies customers of upcoming due dates
func (s *CronService) sendRemindersJob() {
	start := time.Now()
	count, err := s.gnplSvc.SendReminders(start)
	if err != nil {
		s.logger.WithField("error", err.Error()).Error("Reminder job failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"reminders_sent": count,
		"duration":       time.Since(start).String(),
	}).Info("Reminder job completed")
}

// expireSessionsJob cancels booking sessions that sat open past the TTL.
// Seats are untouched; inventory is only consumed at ticket issuance.
func (s *CronService) expireSessionsJob() {
	cutoff := time.Now().Add(-s.sessionTTL)
	count, err := s.sessionRepo.ExpireStale(cutoff)
	if err != nil {
		s.logger.WithField("error", err.Error()).Error("Session expiry job failed")
		return
	}
	if count > 0 {
		s.logger.WithField("sessions_expired", count).Info("Stale sessions cancelled")
	}
}
