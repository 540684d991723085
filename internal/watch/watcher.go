package watch

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logx "ticketwatch/pkg/logx"
)

// NotifyFunc delivers a finished notification text. The controller does
// not care who reads it.
type NotifyFunc func(name, text string)

type baseline struct {
	snap     *Snapshot // nil until the first successful send
	firstRun bool
}

// Controller drives one source: each Tick polls the source, diffs the
// result against the per-sub-target baseline, asks the throttle whether
// to notify, and on a send advances the baseline. Ticks that arrive
// while a previous tick is still running are skipped outright rather
// than queued, so a slow upstream can never stack requests.
type Controller struct {
	src      Source
	throttle *Throttle
	notify   NotifyFunc
	log      logx.Logger
	now      func() time.Time

	busy    sync.Mutex
	enabled atomic.Bool
	rot     rotor

	mu        sync.Mutex
	baselines map[string]*baseline
}

func NewController(src Source, throttle *Throttle, notify NotifyFunc, log logx.Logger) *Controller {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Controller{
		src:       src,
		throttle:  throttle,
		notify:    notify,
		log:       log.With(logx.String("source", src.Name())),
		now:       time.Now,
		baselines: map[string]*baseline{},
	}
	c.enabled.Store(true)
	return c
}

func (c *Controller) Name() string { return c.src.Name() }

func (c *Controller) SetEnabled(on bool) { c.enabled.Store(on) }
func (c *Controller) Enabled() bool      { return c.enabled.Load() }

// Tick runs one polling round. Safe to call from any goroutine.
func (c *Controller) Tick(ctx context.Context) {
	if !c.enabled.Load() {
		return
	}
	if !c.busy.TryLock() {
		c.log.Debug("tick skipped, previous still running")
		return
	}
	defer c.busy.Unlock()

	switch c.src.Mode() {
	case ModeTogether:
		c.tickTogether(ctx)
	default:
		c.tickRotate(ctx)
	}
}

func (c *Controller) tickRotate(ctx context.Context) {
	subs := c.src.SubTargets()
	if len(subs) == 0 {
		return
	}
	sub := subs[c.rot.next(len(subs))]

	snap, err := c.src.Fetch(ctx, sub)
	if err != nil {
		c.log.Warn("fetch failed", logx.String("target", sub.ID), logx.Err(err))
		return
	}

	bl := c.getBaseline(sub.ID)
	changed := c.diffAgainst(bl, snap)
	available := snap.AvailableLines()

	switch c.throttle.Decide(c.src.Name()+"/"+sub.ID, len(changed) > 0, len(available) > 0) {
	case NoSend:
		return
	case SendHeartbeat:
		c.log.Debug("heartbeat", logx.String("target", sub.ID))
	case SendChange:
		c.log.Info("change detected", logx.String("target", sub.ID), logx.Int("changed", len(changed)))
	}

	text := Compose(NotifyTitle(sub.Title), changed, available, c.now())
	if text == "" {
		return
	}
	c.notify(c.src.Name(), text)
	c.commitBaseline(sub.ID, snap)
}

type subResult struct {
	sub  SubTarget
	snap *Snapshot
	err  error
}

func (c *Controller) tickTogether(ctx context.Context) {
	subs := c.src.SubTargets()
	if len(subs) == 0 {
		return
	}

	results := make([]subResult, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub SubTarget) {
			defer wg.Done()
			snap, err := c.src.Fetch(ctx, sub)
			results[i] = subResult{sub: sub, snap: snap, err: err}
		}(i, sub)
	}
	wg.Wait()

	var changed, available []string
	okCount := 0
	for _, res := range results {
		if res.err != nil {
			c.log.Warn("fetch failed", logx.String("target", res.sub.ID), logx.Err(res.err))
			continue
		}
		okCount++
		bl := c.getBaseline(res.sub.ID)
		changed = append(changed, c.diffAgainst(bl, res.snap)...)
		available = append(available, res.snap.AvailableLines()...)
	}
	if okCount == 0 {
		return
	}

	switch c.throttle.Decide(c.src.Name(), len(changed) > 0, len(available) > 0) {
	case NoSend:
		return
	case SendHeartbeat:
		c.log.Debug("heartbeat")
	case SendChange:
		c.log.Info("change detected", logx.Int("changed", len(changed)))
	}

	text := Compose(NotifyTitle(c.src.GroupLabel()), changed, available, c.now())
	if text == "" {
		return
	}
	c.notify(c.src.Name(), text)
	for _, res := range results {
		if res.err == nil {
			c.commitBaseline(res.sub.ID, res.snap)
		}
	}
}

func (c *Controller) getBaseline(id string) *baseline {
	c.mu.Lock()
	defer c.mu.Unlock()
	bl := c.baselines[id]
	if bl == nil {
		bl = &baseline{firstRun: true}
		c.baselines[id] = bl
	}
	return bl
}

func (c *Controller) diffAgainst(bl *baseline, snap *Snapshot) []string {
	c.mu.Lock()
	firstRun := bl.firstRun
	prev := bl.snap
	c.mu.Unlock()
	if firstRun {
		return Diff(nil, snap)
	}
	return Diff(prev, snap)
}

func (c *Controller) commitBaseline(id string, snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bl := c.baselines[id]
	if bl == nil {
		bl = &baseline{}
		c.baselines[id] = bl
	}
	bl.snap = snap
	bl.firstRun = false
}

// Snapshot fetches every sub-target right now and returns the full
// formatted state, bypassing diff and throttle. Used by the on-demand
// status command; the caller appends the timestamp when assembling
// snapshots from several controllers.
func (c *Controller) Snapshot(ctx context.Context) string {
	subs := c.src.SubTargets()
	if len(subs) == 0 {
		return ""
	}

	if c.src.Mode() == ModeTogether {
		var lines []string
		for _, sub := range subs {
			snap, err := c.src.Fetch(ctx, sub)
			if err != nil {
				lines = append(lines, sub.Title+": "+err.Error())
				continue
			}
			lines = append(lines, snap.Lines()...)
		}
		if len(lines) == 0 {
			lines = append(lines, "（无数据）")
		}
		return SnapshotTitle(c.src.GroupLabel()) + "\n" + strings.Join(lines, "\n")
	}

	var parts []string
	for _, sub := range subs {
		head := SnapshotTitle(sub.Title)
		snap, err := c.src.Fetch(ctx, sub)
		if err != nil {
			parts = append(parts, head+"\n"+err.Error())
			continue
		}
		lines := snap.Lines()
		if len(lines) == 0 {
			lines = append(lines, "（无数据）")
		}
		parts = append(parts, head+"\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n")
}
