package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManagerCreateTransitionComplete(t *testing.T) {
	m := NewManager(time.Minute)
	j := m.Create("scenes")
	if j.ID == "" {
		t.Fatalf("job ID should not be empty")
	}
	if j.Stage != StageQueued {
		t.Fatalf("new job stage = %q, want %q", j.Stage, StageQueued)
	}

	if err := m.Transition(j.ID, StageSynthesizing, "scene 1/3"); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	got, err := m.Get(j.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Stage != StageSynthesizing || got.Detail != "scene 1/3" {
		t.Fatalf("unexpected job state: %+v", got)
	}

	if err := m.Complete(j.ID, []string{"a.mp3"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	got, _ = m.Get(j.ID)
	if got.Stage != StageDone || len(got.OutputFiles) != 1 {
		t.Fatalf("completed job state: %+v", got)
	}

	if err := m.Transition(j.ID, StagePlanning, ""); err == nil {
		t.Fatalf("Transition() out of terminal stage should fail")
	}
}

func TestManagerFailRecordsError(t *testing.T) {
	m := NewManager(time.Minute)
	j := m.Create("audio")

	if err := m.Fail(j.ID, errors.New("synthesis rejected")); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	got, _ := m.Get(j.ID)
	if got.Stage != StageFailed || got.Error != "synthesis rejected" {
		t.Fatalf("failed job state: %+v", got)
	}
}

func TestManagerGetUnknown(t *testing.T) {
	m := NewManager(time.Minute)
	if _, err := m.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestManagerSubscribeReceivesEvents(t *testing.T) {
	m := NewManager(time.Minute)
	j := m.Create("scenes")

	events, cancel, err := m.Subscribe(j.ID)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancel()

	if err := m.Transition(j.ID, StagePlanning, ""); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	select {
	case ev := <-events:
		if ev.Stage != StagePlanning || ev.JobID != j.ID {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event delivered")
	}
}

func TestManagerCancelDuringDelivery(t *testing.T) {
	m := NewManager(time.Minute)
	j := m.Create("audio")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			events, cancel, err := m.Subscribe(j.ID)
			if err != nil {
				t.Errorf("Subscribe() error = %v", err)
				return
			}
			go func() {
				for range events {
				}
			}()
			cancel()
		}
	}()

	for i := 0; i < 500; i++ {
		if err := m.Transition(j.ID, StageSynthesizing, "tick"); err != nil {
			t.Fatalf("Transition() error = %v", err)
		}
	}
	<-done
}

func TestManagerFinishHookRunsOnce(t *testing.T) {
	m := NewManager(time.Minute)
	var finished []*Job
	m.SetFinishHook(func(j *Job) { finished = append(finished, j) })

	j := m.Create("scenes")
	if err := m.Transition(j.ID, StagePlanning, ""); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if err := m.Complete(j.ID, nil); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if len(finished) != 1 {
		t.Fatalf("finish hook calls = %d, want 1", len(finished))
	}
	if finished[0].Stage != StageDone {
		t.Fatalf("hook job stage = %q, want done", finished[0].Stage)
	}
}

func TestManagerJanitorDropsFinishedJobs(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	j := m.Create("scenes")
	if err := m.Complete(j.ID, nil); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := m.Get(j.ID); errors.Is(err, ErrNotFound) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("finished job not swept")
}

func TestManagerActiveCount(t *testing.T) {
	m := NewManager(time.Minute)
	a := m.Create("scenes")
	m.Create("audio")
	if got := m.ActiveCount(); got != 2 {
		t.Fatalf("ActiveCount = %d, want 2", got)
	}
	if err := m.Fail(a.ID, errors.New("x")); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if got := m.ActiveCount(); got != 1 {
		t.Fatalf("ActiveCount = %d, want 1", got)
	}
}
