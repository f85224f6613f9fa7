package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/TourSync/internal/broker/messages"
	"github.com/BearBump/TourSync/internal/integrations/logistics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Archiver сохраняет сырую страницу и возвращает ключ объекта.
type Archiver interface {
	PutPage(ctx context.Context, p messages.SnapshotPage) (string, error)
}

type Poller struct {
	client   logistics.Client
	producer Producer
	rl       RateLimiter
	archive  Archiver

	topic string

	planner *Planner

	pollInterval       time.Duration
	pageSize           int
	maxPages           int
	concurrency        int
	rateLimitPerMinute int64
	publishRetries     int

	triggerCh  chan struct{}
	backfillCh chan struct{}

	// backoff после неудачных циклов; читается только из Run
	failCount     int32
	nextAttemptAt time.Time

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastSuccessUnixNano atomic.Int64
	lastTriggerUnixNano atomic.Int64
	nextAttemptUnixNano atomic.Int64
	totalCycles         atomic.Int64
	totalPages          atomic.Int64
	totalTasks          atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	consecutiveFails    atomic.Int32
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(client logistics.Client, producer Producer, rl RateLimiter, topic string) *Poller {
	return &Poller{
		client: client, producer: producer, rl: rl, topic: topic,
		planner:            DefaultPlanner(),
		pollInterval:       5 * time.Minute,
		pageSize:           100,
		maxPages:           1000,
		concurrency:        2,
		rateLimitPerMinute: 60,
		publishRetries:     10,
		triggerCh:          make(chan struct{}, 1),
		backfillCh:         make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

func (p *Poller) WithSettings(pollInterval time.Duration, pageSize, concurrency int, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if pageSize > 0 {
		p.pageSize = pageSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg, nil)
	return p
}

// WithArchive включает сохранение сырых страниц перед публикацией.
func (p *Poller) WithArchive(a Archiver) *Poller {
	p.archive = a
	return p
}

// Trigger forces an immediate fetch of today's window (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// TriggerBackfill forces a fetch of the whole look-back range (best-effort, non-blocking).
func (p *Poller) TriggerBackfill() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.backfillCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt           time.Time  `json:"startedAt"`
	LastCycleAt         *time.Time `json:"lastCycleAt,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastTriggerAt       *time.Time `json:"lastTriggerAt,omitempty"`
	NextAttemptAt       *time.Time `json:"nextAttemptAt,omitempty"`
	TotalCycles         int64      `json:"totalCycles"`
	TotalPages          int64      `json:"totalPages"`
	TotalTasks          int64      `json:"totalTasks"`
	TotalErrors         int64      `json:"totalErrors"`
	InFlight            int64      `json:"inFlight"`
	ConsecutiveFailures int32      `json:"consecutiveFailures"`
	LastError           string     `json:"lastError,omitempty"`
}

func unixPtr(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	t := time.Unix(0, n).UTC()
	return &t
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:           time.Unix(0, p.startedAtUnixNano).UTC(),
		LastCycleAt:         unixPtr(p.lastCycleUnixNano.Load()),
		LastSuccessAt:       unixPtr(p.lastSuccessUnixNano.Load()),
		LastTriggerAt:       unixPtr(p.lastTriggerUnixNano.Load()),
		NextAttemptAt:       unixPtr(p.nextAttemptUnixNano.Load()),
		TotalCycles:         p.totalCycles.Load(),
		TotalPages:          p.totalPages.Load(),
		TotalTasks:          p.totalTasks.Load(),
		TotalErrors:         p.totalErrors.Load(),
		InFlight:            p.inFlight.Load(),
		ConsecutiveFailures: p.consecutiveFails.Load(),
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if time.Now().Before(p.nextAttemptAt) {
				continue
			}
			p.cycle(ctx, []Window{p.planner.Today(time.Now())})
		case <-p.triggerCh:
			p.cycle(ctx, []Window{p.planner.Today(time.Now())})
		case <-p.backfillCh:
			p.cycle(ctx, p.planner.Backfill(time.Now()))
		}
	}
}

// cycle fetches the given windows and updates the failure backoff.
func (p *Poller) cycle(ctx context.Context, windows []Window) {
	if err := p.runOnce(ctx, windows); err != nil {
		p.failCount++
		delay := p.planner.BackoffDelay(p.failCount)
		p.nextAttemptAt = time.Now().Add(delay)
		p.nextAttemptUnixNano.Store(p.nextAttemptAt.UTC().UnixNano())
		p.consecutiveFails.Store(p.failCount)
		slog.Warn("fetch cycle failed, backing off", "fails", p.failCount, "delay", delay.String())
		return
	}
	p.failCount = 0
	p.nextAttemptAt = time.Time{}
	p.nextAttemptUnixNano.Store(0)
	p.consecutiveFails.Store(0)
}

// runOnce fetches every window concurrently and returns the first error.
func (p *Poller) runOnce(ctx context.Context, windows []Window) error {
	now := time.Now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())
	p.totalCycles.Add(1)
	runID := uuid.NewString()

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	var firstErrMu sync.Mutex
	var firstErr error
	for _, w := range windows {
		w := w
		sem <- struct{}{}
		wg.Add(1)
		p.inFlight.Add(1)
		go func() {
			defer func() {
				p.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := p.fetchWindow(ctx, runID, w); err != nil {
				p.totalErrors.Add(1)
				p.setLastError(err)
				slog.Error("fetch window", "run_id", runID, "from", w.From.Format(time.RFC3339), "error", err.Error())
				firstErrMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				firstErrMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firstErr == nil {
		p.lastSuccessUnixNano.Store(time.Now().UTC().UnixNano())
	}
	return firstErr
}

func (p *Poller) fetchWindow(ctx context.Context, runID string, w Window) error {
	for page := 1; page <= p.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.waitRateLimit(ctx); err != nil {
			return err
		}

		res, err := p.client.FetchTasks(ctx, logistics.Query{From: w.From, To: w.To, Page: page, PageSize: p.pageSize})
		if err != nil {
			return errors.Wrapf(err, "fetch page %d", page)
		}

		if len(res.Tasks) > 0 {
			if err := p.processPage(ctx, messages.SnapshotPage{
				RunID:     runID,
				FetchedAt: time.Now().UTC(),
				From:      w.From,
				To:        w.To,
				Page:      page,
				Tasks:     res.Tasks,
			}); err != nil {
				return err
			}
		}
		if !res.HasMore {
			return nil
		}
	}
	slog.Warn("page limit reached", "run_id", runID, "from", w.From.Format(time.RFC3339), "max_pages", p.maxPages)
	return nil
}

func (p *Poller) waitRateLimit(ctx context.Context) error {
	if p.rl == nil || p.rateLimitPerMinute <= 0 {
		return nil
	}
	now := time.Now().UTC()
	minuteKey := fmt.Sprintf("rl:tasks:%s", now.Format("200601021504"))
	allowed, n, err := p.rl.Allow(ctx, minuteKey, p.rateLimitPerMinute, 70*time.Second)
	if err != nil {
		return err
	}
	if !allowed {
		// лимит минуты исчерпан: ждём следующую минуту
		wait := now.Truncate(time.Minute).Add(time.Minute).Sub(now)
		slog.Warn("rate limit exceeded", "count", n, "wait", wait.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}

func (p *Poller) processPage(ctx context.Context, page messages.SnapshotPage) error {
	if p.archive != nil {
		key, err := p.archive.PutPage(ctx, page)
		if err != nil {
			// архив вспомогательный: страница всё равно публикуется
			slog.Error("archive page", "run_id", page.RunID, "page", page.Page, "error", err.Error())
		} else {
			page.ArchiveKey = key
		}
	}

	b, err := json.Marshal(page)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}
	key := page.Key()

	// Kafka может быть не готова сразу после старта docker compose.
	var pubErr error
	for i := 0; i < p.publishRetries; i++ {
		if pubErr = p.producer.Publish(ctx, p.topic, key, b); pubErr == nil {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(150*(i+1)) * time.Millisecond):
		}
	}
	if pubErr != nil {
		return pubErr
	}

	p.totalPages.Add(1)
	p.totalTasks.Add(int64(len(page.Tasks)))
	return nil
}
