package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/velkrow/metalvault/internal/pipeline"
)

type ScrapeDatePayload struct {
	Date       string `json:"date"` // DD-MM-YYYY
	WithCovers bool   `json:"with_covers"`
}

// EnqueueScrape queues a scrape for one day. The task id is derived from
// the date, so re-submitting the same day while it is queued or running
// returns ErrConflict.
func (q *Queue) EnqueueScrape(date string, withCovers bool) (string, error) {
	if _, err := pipeline.ParseDay(date); err != nil {
		return "", err
	}
	payload := ScrapeDatePayload{Date: date, WithCovers: withCovers}
	return q.EnqueueUnique(TaskScrapeDate, payload, "scrape:"+date, asynq.MaxRetry(0))
}

type EventNotifier interface {
	Broadcast(event string, data interface{})
}

type ScrapeHandler struct {
	orch     *pipeline.Orchestrator
	notifier EventNotifier
}

func NewScrapeHandler(orch *pipeline.Orchestrator, notifier EventNotifier) *ScrapeHandler {
	return &ScrapeHandler{orch: orch, notifier: notifier}
}

func (h *ScrapeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ScrapeDatePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	day, err := pipeline.ParseDay(p.Date)
	if err != nil {
		return err
	}

	log.Printf("[jobs] scrape task for %s starting", p.Date)
	if h.notifier != nil {
		h.notifier.Broadcast("scrape:start", map[string]string{"date": p.Date})
	}

	summary, err := h.orch.RunForDate(ctx, day, p.WithCovers)
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		// Another run (CLI or a racing task) holds the flag; drop the task
		// rather than retrying into the same wall.
		log.Printf("[jobs] scrape for %s skipped, another run is active", p.Date)
		return nil
	}
	if err != nil {
		if h.notifier != nil {
			h.notifier.Broadcast("scrape:failed", map[string]string{"date": p.Date, "error": err.Error()})
		}
		return err
	}

	if h.notifier != nil {
		h.notifier.Broadcast("scrape:done", summary)
	}
	log.Printf("[jobs] scrape task for %s done: %d albums", p.Date, summary.Total)
	return nil
}
