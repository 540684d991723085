package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	kit "ticketwatch/internal/transport"
	logx "ticketwatch/pkg/logx"
)

type Config struct {
	Workers    int
	RatePerSec int
	RetryMax   int
}

// TargetsFunc resolves the current recipient set at send time, so
// subscription changes apply to the very next notification.
type TargetsFunc func() []kit.ChatTarget

type job struct {
	id      string
	name    string
	targets []kit.ChatTarget
	text    string
}

type JobStatus struct {
	ID        string
	Name      string
	Total     int
	Done      int
	Failed    int
	StartedAt time.Time
	DoneAt    time.Time
	Running   bool
}

// Service fans a text message out to every subscribed chat through a small
// worker pool. Delivery failures are isolated per target: one failing chat
// never blocks or aborts delivery to the others, and nothing propagates
// back to the caller.
type Service struct {
	mu sync.Mutex

	cfg     Config
	adapter kit.Adapter
	targets TargetsFunc
	log     logx.Logger

	limiter *rate.Limiter
	queue   chan job
	stopCh  chan struct{}

	statusMu sync.RWMutex
	status   map[string]*JobStatus
}

func New(cfg Config, adapter kit.Adapter, targets TargetsFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		adapter: adapter,
		targets: targets,
		log:     log,
		status:  map[string]*JobStatus{},
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	rps := s.cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)

	s.queue = make(chan job, 64)
	s.stopCh = make(chan struct{})
	for i := 0; i < workers; i++ {
		go s.worker(ctx)
	}
	s.log.Info("broadcaster started", logx.Int("workers", workers), logx.Int("rps", rps))
}

func (s *Service) Stop(ctx context.Context) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.log.Info("broadcaster stopped")
}

// Broadcast enqueues text for delivery to the current subscriber set.
// No-op when the text is empty or nobody is subscribed. Never blocks: if
// the queue is full the job is dropped with a warning.
func (s *Service) Broadcast(name, text string) string {
	if text == "" || s.targets == nil {
		return ""
	}
	targets := s.targets()
	if len(targets) == 0 {
		return ""
	}
	return s.enqueue(name, targets, text)
}

// Send enqueues text for an explicit target list (command replies etc.).
func (s *Service) Send(name string, targets []kit.ChatTarget, text string) string {
	if text == "" || len(targets) == 0 {
		return ""
	}
	return s.enqueue(name, targets, text)
}

func (s *Service) enqueue(name string, targets []kit.ChatTarget, text string) string {
	id := uuid.NewString()
	st := &JobStatus{ID: id, Name: name, Total: len(targets)}
	s.statusMu.Lock()
	s.status[id] = st
	s.statusMu.Unlock()

	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()
	if queue == nil {
		return ""
	}
	select {
	case queue <- job{id: id, name: name, targets: targets, text: text}:
	default:
		s.log.Warn("broadcast queue full; dropping job",
			logx.String("job", name), logx.Int("targets", len(targets)))
		return ""
	}
	return id
}

// Status returns a copy of a job's delivery counters.
func (s *Service) Status(jobID string) (JobStatus, bool) {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	st, ok := s.status[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

func (s *Service) worker(ctx context.Context) {
	for {
		s.mu.Lock()
		stopCh := s.stopCh
		queue := s.queue
		s.mu.Unlock()
		if stopCh == nil || queue == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case j := <-queue:
			s.execJob(ctx, j)
		}
	}
}

func (s *Service) execJob(ctx context.Context, j job) {
	s.setRunning(j.id)
	defer s.finish(j.id)

	for _, t := range j.targets {
		if err := s.sendOne(ctx, t, j.text); err != nil {
			s.markFail(j.id)
			s.log.Warn("delivery failed",
				logx.String("job", j.name), logx.Int64("chat_id", t.ChatID), logx.Err(err))
		}
		s.markDone(j.id)
	}
}

func (s *Service) sendOne(ctx context.Context, t kit.ChatTarget, text string) error {
	if s.limiter != nil {
		_ = s.limiter.Wait(ctx)
	}
	var last error
	retry := s.cfg.RetryMax
	for i := 0; i <= retry; i++ {
		_, err := s.adapter.SendText(ctx, t, text, nil)
		if err == nil {
			return nil
		}
		last = err
		select {
		case <-ctx.Done():
			return last
		case <-time.After(time.Duration(200+100*i) * time.Millisecond):
		}
	}
	return last
}

func (s *Service) setRunning(id string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if st := s.status[id]; st != nil {
		st.StartedAt = time.Now()
		st.Running = true
	}
}

func (s *Service) markDone(id string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if st := s.status[id]; st != nil {
		st.Done++
	}
}

func (s *Service) markFail(id string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if st := s.status[id]; st != nil {
		st.Failed++
	}
}

func (s *Service) finish(id string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if st := s.status[id]; st != nil {
		st.DoneAt = time.Now()
		st.Running = false
	}
}
