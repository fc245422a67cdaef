package server

import (
	"net/http"

	"github.com/cwbudde/evotsp/internal/ui"
)

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Only handle exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	jobs := s.jobManager.ListJobs()
	items := make([]ui.JobListItem, len(jobs))
	for i, job := range jobs {
		items[i] = jobListItem(job)
	}

	if err := ui.JobList(items).Render(r.Context(), w); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
}

func jobListItem(job *Job) ui.JobListItem {
	item := ui.JobListItem{
		ID:            job.ID,
		State:         string(job.State),
		Mode:          string(job.Config.Mode),
		Cities:        len(job.Config.Cities),
		Iterations:    job.Iterations,
		BestLength:    job.BestLength,
		InitialLength: job.InitialLength,
		StartTime:     job.StartTime,
		EndTime:       job.EndTime,
		Error:         job.Error,
		ResumedFrom:   job.ResumedFrom,
	}
	if len(job.BestOrder) == len(job.Config.Cities) {
		item.Tour = make([]ui.Point, len(job.BestOrder))
		for i, idx := range job.BestOrder {
			c := job.Config.Cities[idx]
			item.Tour[i] = ui.Point{X: c.X, Y: c.Y}
		}
	}
	return item
}
