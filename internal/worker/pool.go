package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueClosingReport = "jobs:closing_report"
	QueueEmail         = "jobs:email"

	jobClosingReport = "closing_report"
	jobEmail         = "email"

	// maxJobAttempts before a job goes to the dead letter queue.
	maxJobAttempts = 5
)

// ErrPermanent marks failures a retry cannot fix (unknown closing, bad
// payload); such jobs go straight to the dead letter queue.
var ErrPermanent = errors.New("permanent job failure")

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes one job payload. A returned error schedules a retry.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// ClosingReportPayload identifies the closing to render.
type ClosingReportPayload struct {
	TenantID  string `json:"tenant_id"`
	ClosingID string `json:"closing_id"`
}

// EnqueueClosingReport pushes a report job for a freshly committed closing.
func (d *Dispatcher) EnqueueClosingReport(ctx context.Context, tenantID, closingID string) error {
	return d.enqueue(ctx, QueueClosingReport, jobClosingReport, ClosingReportPayload{TenantID: tenantID, ClosingID: closingID})
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, jobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return d.push(ctx, queue, Job{Type: jobType, Payload: data})
}

func (d *Dispatcher) push(ctx context.Context, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler // queue -> handler
	size     int
}

func NewPool(rdb *redis.Client, size int, handlers map[string]Handler) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{rdb: rdb, handlers: handlers, size: size}
}

// Start launches the workers. Each goroutine blocks on BRPOP; zero CPU when idle.
func (p *Pool) Start(ctx context.Context) {
	queues := make([]string, 0, len(p.handlers))
	for q := range p.handlers {
		queues = append(queues, q)
	}
	for i := 0; i < p.size; i++ {
		go p.run(ctx, i, queues)
	}
	log.Info().Int("workers", p.size).Strs("queues", queues).Msg("worker pool started")
}

func (p *Pool) run(ctx context.Context, id int, queues []string) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
			// blocking pop, wakes every 5s to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, p.rdb, queue, "unknown", json.RawMessage(fmt.Sprintf("%q", raw)), "malformed envelope", 0)
		return
	}
	h, ok := p.handlers[queue]
	if !ok {
		log.Error().Str("queue", queue).Msg("no handler for queue")
		return
	}

	err := h.Process(ctx, job.Payload)
	if err == nil {
		return
	}
	if errors.Is(err, ErrPermanent) {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts+1)
		return
	}
	job.Attempts++
	if job.Attempts >= maxJobAttempts {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload,
			fmt.Sprintf("max attempts (%d) exceeded: %s", maxJobAttempts, err), job.Attempts)
		return
	}
	delay := retryBackoff(job.Attempts)
	if serr := ScheduleRetry(ctx, p.rdb, queue, job, delay); serr != nil {
		log.Error().Err(serr).Str("queue", queue).Msg("retry not scheduled")
		return
	}
	log.Warn().Err(err).Str("queue", queue).Str("type", job.Type).
		Int("attempt", job.Attempts).Dur("retry_in", delay).Msg("job failed, retry scheduled")
}
