package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "ticketwatch/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      string
		want    ParsedSpec
		wantErr bool
	}{
		{name: "five field cron", in: "*/5 * * * *", want: ParsedSpec{Kind: SpecCron, Cron: "*/5 * * * *"}},
		{name: "descriptor", in: "@hourly", want: ParsedSpec{Kind: SpecCron, Cron: "@hourly"}},
		{name: "cron prefix", in: "cron:0 9 * * 1", want: ParsedSpec{Kind: SpecCron, Cron: "0 9 * * 1"}},
		{name: "duration", in: "600ms", want: ParsedSpec{Kind: SpecInterval, Every: 600 * time.Millisecond}},
		{name: "interval prefix", in: "interval:3s", want: ParsedSpec{Kind: SpecInterval, Every: 3 * time.Second}},
		{name: "every prefix", in: "every: 2m", want: ParsedSpec{Kind: SpecInterval, Every: 2 * time.Minute}},
		{name: "trims whitespace", in: "  1s  ", want: ParsedSpec{Kind: SpecInterval, Every: time.Second}},
		{name: "empty", in: "", wantErr: true},
		{name: "negative interval", in: "-1s", wantErr: true},
		{name: "zero interval", in: "0s", wantErr: true},
		{name: "garbage", in: "soonish", wantErr: true},
		{name: "empty cron prefix", in: "cron:", wantErr: true},
		{name: "bad interval prefix", in: "interval:xyz", wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseSchedule(%q) expected error, got %+v", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseSchedule(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestAddRejectsInvalidSpecs(t *testing.T) {
	t.Parallel()
	s := New(logx.Nop())

	if err := s.Add("bad-cron", "cron:* * *", func(context.Context) {}); err == nil {
		t.Fatal("expected error for malformed cron spec")
	}
	if err := s.Add("bad-interval", "nope", func(context.Context) {}); err == nil {
		t.Fatal("expected error for malformed interval spec")
	}
	if err := s.Add("ok", "1s", func(context.Context) {}); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
}

func TestIntervalJobFires(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int64
	s := New(logx.Nop())
	if err := s.Add("tick", "20ms", func(context.Context) { fired.Add(1) }); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop(context.Background())

	if fired.Load() < 3 {
		t.Fatalf("interval job fired %d times, want >= 3", fired.Load())
	}
}

func TestStopHaltsFiring(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int64
	s := New(logx.Nop())
	if err := s.Add("tick", "10ms", func(context.Context) { fired.Add(1) }); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	s.Stop(context.Background())

	after := fired.Load()
	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != after {
		t.Fatalf("job kept firing after Stop: %d -> %d", after, got)
	}
}

func TestAddAfterStartFails(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(logx.Nop())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	if err := s.Add("late", "1s", func(context.Context) {}); err == nil {
		t.Fatal("expected error adding a job after Start")
	}
}

func TestPanicInJobIsContained(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int64
	s := New(logx.Nop())
	if err := s.Add("panicky", "15ms", func(context.Context) {
		fired.Add(1)
		panic("boom")
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fired.Load() < 2 {
		t.Fatalf("panicking job should keep being scheduled, fired %d", fired.Load())
	}
}
