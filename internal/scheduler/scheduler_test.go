package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wonny/feedwatch/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	runs     atomic.Int32
	err      error
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }
func (j *stubJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(logger.NewNop())
	job := &stubJob{name: "tick", schedule: "@every 1h"}

	if err := s.AddJob(job); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.AddJob(job); err == nil {
		t.Fatal("expected duplicate job error")
	}
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(logger.NewNop())
	if err := s.AddJob(&stubJob{name: "bad", schedule: "not a schedule"}); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestRunJobRecordsHistory(t *testing.T) {
	s := New(logger.NewNop()).WithRetry(0, 0)
	job := &stubJob{name: "tick", schedule: "@every 1h"}
	if err := s.AddJob(job); err != nil {
		t.Fatal(err)
	}

	if err := s.RunJob("tick"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		history, err := s.GetJobHistory("tick")
		if err != nil {
			t.Fatal(err)
		}
		if len(history.Results) > 0 {
			if !history.Results[0].Success {
				t.Fatal("expected successful run")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never recorded a result")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if job.runs.Load() != 1 {
		t.Fatalf("expected 1 run, got %d", job.runs.Load())
	}
}

func TestRunJobRetriesFailures(t *testing.T) {
	s := New(logger.NewNop()).WithRetry(2, time.Millisecond)
	job := &stubJob{name: "flaky", schedule: "@every 1h", err: errors.New("boom")}
	if err := s.AddJob(job); err != nil {
		t.Fatal(err)
	}

	if err := s.RunJob("flaky"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		history, _ := s.GetJobHistory("flaky")
		if len(history.Results) > 0 {
			result := history.Results[0]
			if result.Success {
				t.Fatal("expected failed result")
			}
			if result.Error != "boom" {
				t.Fatalf("unexpected error: %q", result.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never recorded a result")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Initial attempt plus two retries.
	if job.runs.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", job.runs.Load())
	}
}

func TestRunJobUnknown(t *testing.T) {
	s := New(logger.NewNop())
	if err := s.RunJob("nope"); err == nil {
		t.Fatal("expected unknown job error")
	}
}

func TestJobHistoryHelpers(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 4; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	if got := h.GetSuccessRate(); got != 0.5 {
		t.Fatalf("success rate = %v, want 0.5", got)
	}
	if got := len(h.GetFailedResults()); got != 2 {
		t.Fatalf("failed results = %d, want 2", got)
	}
	if got := len(h.GetLatestResults(2)); got != 2 {
		t.Fatalf("latest results = %d, want 2", got)
	}
	if got := len(h.GetLatestResults(10)); got != 4 {
		t.Fatalf("latest results capped = %d, want 4", got)
	}
}
