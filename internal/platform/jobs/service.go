package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/config"
	"backoffice/internal/platform/metrics"
)

const queueSize = 128

type job struct {
	Name    string
	Trigger string
}

// Service runs registered jobs on cron schedules or on demand. Scheduled runs
// go through a bounded queue drained by a single worker; a job that is
// already queued or running is not queued again.
type Service struct {
	store   StoreAPI
	metrics *metrics.Collector
	cron    *cron.Cron
	queue   chan job

	mu       sync.Mutex
	registry map[string]Func
	inflight map[string]bool
}

func New(store StoreAPI, collector *metrics.Collector) *Service {
	return &Service{
		store:    store,
		metrics:  collector,
		cron:     cron.New(cron.WithParser(config.CronParser), cron.WithLogger(cronLogger{})),
		queue:    make(chan job, queueSize),
		registry: map[string]Func{},
		inflight: map[string]bool{},
	}
}

func (s *Service) Register(name string, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[name] = fn
}

func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schedule adds a cron entry per job name. Every name must be registered.
func (s *Service) Schedule(schedules map[string]string) error {
	for name, expr := range schedules {
		if _, ok := s.lookup(name); !ok {
			return fmt.Errorf("schedule for unknown job %q", name)
		}
		jobName := name
		if _, err := s.cron.AddFunc(expr, func() { s.Enqueue(jobName, TriggerSchedule) }); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
		slog.Info("job scheduled", "job", name, "cron", expr)
	}
	return nil
}

// Run starts the scheduler and the worker and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.cron.Start()
	defer func() {
		<-s.cron.Stop().Done()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-s.queue:
			if _, err := s.execute(ctx, j); err != nil {
				slog.Warn("job run failed", "job", j.Name, "trigger", j.Trigger, "err", err)
			}
		}
	}
}

// Enqueue reports whether the job was queued.
func (s *Service) Enqueue(name, trigger string) bool {
	s.mu.Lock()
	if _, ok := s.registry[name]; !ok || s.inflight[name] {
		s.mu.Unlock()
		return false
	}
	s.inflight[name] = true
	s.mu.Unlock()

	select {
	case s.queue <- job{Name: name, Trigger: trigger}:
		return true
	default:
		s.release(name)
		slog.Warn("job queue full", "job", name)
		return false
	}
}

// RunNow executes a job synchronously and returns the recorded run. A failing
// job is reported through Run.Status, not the returned error.
func (s *Service) RunNow(ctx context.Context, name string) (Run, error) {
	if _, ok := s.lookup(name); !ok {
		return Run{}, apperr.NotFound("job not found")
	}
	s.mu.Lock()
	if s.inflight[name] {
		s.mu.Unlock()
		return Run{}, apperr.Conflict("job is already running")
	}
	s.inflight[name] = true
	s.mu.Unlock()
	run, err := s.execute(ctx, job{Name: name, Trigger: TriggerManual})
	if err != nil {
		slog.Warn("manual job run failed", "job", name, "err", err)
	}
	return run, nil
}

func (s *Service) ListRuns(ctx context.Context, jobType string, limit, offset int) ([]Run, int, error) {
	return s.store.ListRuns(ctx, jobType, limit, offset)
}

func (s *Service) execute(ctx context.Context, j job) (Run, error) {
	defer s.release(j.Name)
	fn, _ := s.lookup(j.Name)

	run := Run{JobType: j.Name, Trigger: j.Trigger, Status: StatusRunning, StartedAt: time.Now().UTC()}
	runID, err := s.store.CreateRun(ctx, j.Name, j.Trigger)
	if err != nil {
		slog.Warn("job run insert failed", "job", j.Name, "err", err)
	}
	run.ID = runID

	details, runErr := fn(ctx)
	run.Status = StatusCompleted
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
		details = map[string]any{"details": details, "error": runErr.Error()}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		slog.Warn("job details marshal failed", "job", j.Name, "err", err)
		detailsJSON = []byte("{}")
	}
	run.Details = detailsJSON
	completed := time.Now().UTC()
	run.CompletedAt = &completed

	if runID != "" {
		if err := s.store.FinishRun(ctx, runID, run.Status, detailsJSON); err != nil {
			slog.Warn("job run update failed", "job", j.Name, "err", err)
		}
	}
	s.metrics.RecordJob(j.Name, run.Status)
	slog.Info("job run finished", "job", j.Name, "trigger", j.Trigger, "status", run.Status, "durationMs", completed.Sub(run.StartedAt).Milliseconds())
	return run, runErr
}

func (s *Service) lookup(name string) (Func, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn, ok := s.registry[name]
	return fn, ok
}

func (s *Service) release(name string) {
	s.mu.Lock()
	delete(s.inflight, name)
	s.mu.Unlock()
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
