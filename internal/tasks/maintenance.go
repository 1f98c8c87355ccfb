// Package tasks runs the periodic maintenance jobs: purging expired or
// revoked refresh tokens and pruning audit events past their retention
// window. Both jobs are idempotent, so a missed or doubled run is harmless.
package tasks

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/readilyreads/server/internal/auth"
	"github.com/readilyreads/server/internal/config"
	"github.com/readilyreads/server/internal/database/audit"
)

// MaintenanceScheduler manages the periodic cleanup jobs.
type MaintenanceScheduler struct {
	authService *auth.Service
	auditRepo   *audit.Repository
	cfg         config.Maintenance

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

func NewMaintenanceScheduler(authService *auth.Service, auditRepo *audit.Repository, cfg config.Maintenance) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		authService: authService,
		auditRepo:   auditRepo,
		cfg:         cfg,
		cron:        cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if maintenance is enabled.
func (s *MaintenanceScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.cfg.Enabled {
		log.Printf("Maintenance scheduler: disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.RunCleanup); err != nil {
		return fmt.Errorf("invalid maintenance schedule '%s': %w", s.cfg.Schedule, err)
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Maintenance scheduler: started with schedule '%s'", s.cfg.Schedule)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	log.Printf("Maintenance scheduler: stopped")
}

// RunCleanup executes both cleanup jobs once.
func (s *MaintenanceScheduler) RunCleanup() {
	purged, err := s.authService.PurgeExpiredTokens()
	if err != nil {
		log.Printf("Maintenance: failed to purge refresh tokens: %v", err)
	} else if purged > 0 {
		log.Printf("Maintenance: purged %d expired refresh tokens", purged)
	}

	retention := s.cfg.AuditRetentionDays
	if retention <= 0 {
		retention = 30
	}
	cutoff := time.Now().AddDate(0, 0, -retention)
	deleted, err := s.auditRepo.DeleteOldEvents(cutoff)
	if err != nil {
		log.Printf("Maintenance: failed to prune audit events: %v", err)
	} else if deleted > 0 {
		log.Printf("Maintenance: pruned %d audit events older than %d days", deleted, retention)
	}
}
