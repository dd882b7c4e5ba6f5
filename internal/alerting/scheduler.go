package alerting

import (
	"context"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/brisk-orange-fox/querywatch/internal/metrics"
)

// Scheduler runs alerts with a non-empty cron schedule. Reload rebuilds the
// cron table from storage; the service's OnChange hook calls it after every
// alert mutation so schedule edits take effect without a restart.
type Scheduler struct {
	service *Service

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID // alert id -> cron entry
	running bool
}

// NewScheduler creates a scheduler over the given service.
func NewScheduler(service *Service) *Scheduler {
	return &Scheduler{
		service: service,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// Start loads scheduled alerts, starts the cron loop, and blocks until the
// context is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}

	s.cron.Start()
	s.setRunning(true)
	log.Printf("scheduler started")

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done() // wait for in-flight jobs
	s.setRunning(false)
	log.Printf("scheduler stopped")
	return nil
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

// Running reports whether the cron loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Reload replaces all cron entries with the scheduled alerts currently in
// storage. Alerts with an empty schedule are never registered.
func (s *Scheduler) Reload(ctx context.Context) error {
	alerts, err := s.service.store.Alerts().ListScheduled(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = make(map[string]cron.EntryID)

	for _, alert := range alerts {
		alertID := alert.ID
		entryID, err := s.cron.AddFunc(alert.Schedule, func() {
			s.runScheduled(alertID)
		})
		if err != nil {
			// Schedules are validated on create/edit; a bad one here means
			// the row was edited out of band. Skip it rather than fail all.
			log.Printf("scheduler: skipping alert %s: bad schedule %q: %v", alertID, alert.Schedule, err)
			continue
		}
		s.entries[alertID] = entryID
	}

	log.Printf("scheduler: %d alert(s) scheduled", len(s.entries))
	return nil
}

// ScheduledCount returns the number of registered cron entries.
func (s *Scheduler) ScheduledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) runScheduled(alertID string) {
	metrics.ScheduledRunsTotal.Inc()
	if _, err := s.service.Run(context.Background(), alertID); err != nil {
		log.Printf("scheduler: run alert %s: %v", alertID, err)
	}
}
