package handlers

import (
	"net/http"

	"github.com/wonny/feedwatch/internal/scheduler"
)

// SchedulerHandler exposes job execution statistics.
type SchedulerHandler struct {
	sched *scheduler.Scheduler
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(sched *scheduler.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{sched: sched}
}

// GetJobs returns run statistics for every registered job.
// GET /api/scheduler/jobs
func (h *SchedulerHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sched.GetJobStats())
}
