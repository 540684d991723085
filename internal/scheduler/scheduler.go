package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "ticketwatch/pkg/logx"
)

// Service runs registered jobs on their schedules: interval jobs get a
// dedicated ticker goroutine (sub-second capable), cron jobs go through
// robfig/cron. Each firing invokes the job in a fresh goroutine so a slow
// run can never delay the timer; overlap control is the job's own concern
// (the tick controllers use a non-blocking guard and skip if busy).
type Service struct {
	log    logx.Logger
	parser cron.Parser

	mu      sync.Mutex
	jobs    []jobDef
	c       *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

type jobDef struct {
	name string
	spec ParsedSpec
	fn   func(ctx context.Context)
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Add registers a job. Must be called before Start.
func (s *Service) Add(name, rawSpec string, fn func(ctx context.Context)) error {
	spec, err := ParseSchedule(rawSpec)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	if spec.Kind == SpecCron {
		if _, err := s.parser.Parse(spec.Cron); err != nil {
			return fmt.Errorf("job %s: invalid cron spec %q: %w", name, spec.Cron, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("job %s: scheduler already started", name)
	}
	s.jobs = append(s.jobs, jobDef{name: name, spec: spec, fn: fn})
	return nil
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.c = cron.New(cron.WithParser(s.parser))

	intervals, crons := 0, 0
	for _, j := range s.jobs {
		j := j
		switch j.spec.Kind {
		case SpecInterval:
			intervals++
			s.wg.Add(1)
			go s.runInterval(runCtx, j)
		case SpecCron:
			crons++
			_, err := s.c.AddFunc(j.spec.Cron, func() { s.fire(runCtx, j) })
			if err != nil {
				// Already validated in Add; should not happen.
				s.log.Error("cron register failed", logx.String("job", j.name), logx.Err(err))
			}
		}
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.Int("interval_jobs", intervals), logx.Int("cron_jobs", crons))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	c := s.c
	s.cancel = nil
	s.c = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}

func (s *Service) runInterval(ctx context.Context, j jobDef) {
	defer s.wg.Done()
	t := time.NewTicker(j.spec.Every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.fire(ctx, j)
		}
	}
}

func (s *Service) fire(ctx context.Context, j jobDef) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in scheduled job",
					logx.String("job", j.name), logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		j.fn(ctx)
	}()
}
