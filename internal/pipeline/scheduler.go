package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler fires the daily scrape at a fixed wall-clock time. A day that
// already ran (scheduled or started by hand through the orchestrator's
// single-flight guard) is not run twice.
type Scheduler struct {
	orch   *Orchestrator
	c      *cron.Cron
	hour   int
	minute int

	mu      sync.Mutex
	lastDay string
}

func NewScheduler(orch *Orchestrator, hour, minute int) *Scheduler {
	return &Scheduler{
		orch:   orch,
		c:      cron.New(),
		hour:   hour,
		minute: minute,
	}
}

// Start registers the cron entry. With runNow set, a catch-up scrape for
// today fires immediately when the scheduled time already passed.
func (s *Scheduler) Start(runNow bool) error {
	expr := fmt.Sprintf("%d %d * * *", s.minute, s.hour)
	if _, err := s.c.AddFunc(expr, s.fire); err != nil {
		return err
	}
	s.c.Start()
	log.Printf("[scheduler] daily scrape at %02d:%02d", s.hour, s.minute)

	if runNow {
		now := time.Now()
		scheduled := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
		if now.After(scheduled) {
			go s.fire()
		}
	}
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.c.Stop()
	<-ctx.Done()
	log.Println("[scheduler] stopped")
}

func (s *Scheduler) fire() {
	today := time.Now().Format("2006-01-02")
	s.mu.Lock()
	if s.lastDay == today {
		s.mu.Unlock()
		log.Printf("[scheduler] already ran for %s, skipping", today)
		return
	}
	s.lastDay = today
	s.mu.Unlock()

	day := time.Now().AddDate(0, 0, -1) // yesterday's releases are complete
	summary, err := s.orch.RunForDate(context.Background(), day, true)
	if err != nil {
		log.Printf("[scheduler] scheduled scrape failed: %v", err)
		return
	}
	log.Printf("[scheduler] scheduled scrape done: %d albums for %s", summary.Total, summary.Date)
}

