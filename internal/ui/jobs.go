// Package ui renders the HTML job dashboard served at /.
package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
)

// Point is a city in tour order.
type Point struct {
	X, Y float64
}

// JobListItem is one row of the job table.
type JobListItem struct {
	ID            string
	State         string
	Mode          string
	Cities        int
	Iterations    int
	BestLength    float64
	InitialLength float64
	StartTime     time.Time
	EndTime       *time.Time
	Error         string
	ResumedFrom   string

	// Tour is the best tour so far, empty until the first progress report.
	Tour []Point
}

// Improvement is the relative length reduction in percent.
func (j JobListItem) Improvement() float64 {
	if j.InitialLength <= 0 {
		return 0
	}
	return 100 * (j.InitialLength - j.BestLength) / j.InitialLength
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>evotsp jobs</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
td, th { padding: 0.3rem 0.8rem; border-bottom: 1px solid #ddd; text-align: left; }
.state-running { color: #0a6; }
.state-failed { color: #c00; }
.state-cancelled { color: #888; }
svg.tour { background: #fafafa; border: 1px solid #ddd; }
</style>
</head>
<body>
<h1>Jobs</h1>
`

// JobList renders the full dashboard page.
func JobList(jobs []JobListItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}
		if len(jobs) == 0 {
			if _, err := io.WriteString(w, "<p>No jobs yet. POST a city list to /api/v1/jobs to start one.</p>\n"); err != nil {
				return err
			}
		} else {
			if _, err := io.WriteString(w, "<table>\n<tr><th>ID</th><th>State</th><th>Mode</th><th>Cities</th><th>Iterations</th><th>Best length</th><th>Improvement</th><th>Started</th><th>Tour</th></tr>\n"); err != nil {
				return err
			}
			for _, job := range jobs {
				if err := JobRow(job).Render(ctx, w); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "</table>\n"); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</body>\n</html>\n")
		return err
	})
}

// JobRow renders one table row.
func JobRow(job JobListItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		id := templ.EscapeString(job.ID)
		state := templ.EscapeString(job.State)

		var b strings.Builder
		fmt.Fprintf(&b, `<tr><td><a href="/api/v1/jobs/%s/status">%s</a></td>`, id, id)
		fmt.Fprintf(&b, `<td class="state-%s">%s`, state, state)
		if job.Error != "" {
			fmt.Fprintf(&b, ` <span title="%s">(error)</span>`, templ.EscapeString(job.Error))
		}
		b.WriteString("</td>")
		fmt.Fprintf(&b, "<td>%s</td>", templ.EscapeString(job.Mode))
		fmt.Fprintf(&b, "<td>%s</td>", humanize.Comma(int64(job.Cities)))
		fmt.Fprintf(&b, "<td>%s</td>", humanize.Comma(int64(job.Iterations)))
		fmt.Fprintf(&b, "<td>%.4f</td>", job.BestLength)
		fmt.Fprintf(&b, "<td>%.1f%%</td>", job.Improvement())
		fmt.Fprintf(&b, "<td>%s</td>", templ.EscapeString(humanize.Time(job.StartTime)))
		b.WriteString("<td>")
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := TourSVG(job.Tour, 120).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</td></tr>\n")
		return err
	})
}

// TourSVG draws a closed tour scaled into a size x size box.
func TourSVG(tour []Point, size int) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(tour) < 2 {
			_, err := io.WriteString(w, "-")
			return err
		}

		minX, minY := tour[0].X, tour[0].Y
		maxX, maxY := minX, minY
		for _, p := range tour[1:] {
			minX, maxX = min(minX, p.X), max(maxX, p.X)
			minY, maxY = min(minY, p.Y), max(maxY, p.Y)
		}
		span := max(maxX-minX, maxY-minY)
		if span == 0 {
			span = 1
		}
		const pad = 4.0
		scale := (float64(size) - 2*pad) / span

		var b strings.Builder
		fmt.Fprintf(&b, `<svg class="tour" width="%d" height="%d" viewBox="0 0 %d %d"><polygon fill="none" stroke="#36c" stroke-width="1" points="`, size, size, size, size)
		for i, p := range tour {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%.1f,%.1f", pad+(p.X-minX)*scale, pad+(p.Y-minY)*scale)
		}
		b.WriteString(`"/></svg>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
