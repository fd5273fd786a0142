// Package scheduler runs periodic maintenance against the storage
// contract. Currently that is the expired-token purge.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/tempo/internal/storage"
)

// MaintenanceScheduler purges expired refresh and password-reset tokens on
// a cron schedule.
type MaintenanceScheduler struct {
	store    storage.Provider
	schedule string

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

func NewMaintenanceScheduler(store storage.Provider, schedule string) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		store:    store,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler.
func (s *MaintenanceScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.runPurge); err != nil {
		return fmt.Errorf("failed to schedule token purge: %w", err)
	}
	s.cron.Start()
	s.isRunning = true
	log.Printf("maintenance scheduler: started with schedule '%s'", s.schedule)
	return nil
}

// Stop waits for a running job to finish before returning.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isRunning = false
	log.Printf("maintenance scheduler: stopped")
}

func (s *MaintenanceScheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	purged, err := s.store.DeleteExpiredTokens(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("maintenance scheduler: token purge failed: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("maintenance scheduler: purged %d expired tokens", purged)
	}
}
