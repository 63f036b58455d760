package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/citystash/pickup-sms/app/scheduler"
	"github.com/citystash/pickup-sms/repository"
	"github.com/gofiber/fiber/v3"
)

const dashboardPage = `<!DOCTYPE html>
<html>
<head>
<title>Pickup SMS Jobs</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin-top: 1rem; }
th, td { border: 1px solid #ccc; padding: 0.35rem 0.7rem; text-align: left; }
th { background: #f4f4f4; }
form { display: inline-block; margin-right: 2rem; padding: 1rem; border: 1px solid #ccc; }
.notice { padding: 0.5rem 1rem; background: #eef7ee; border: 1px solid #9c9; }
.error { background: #fbeaea; border-color: #c99; }
.aborted { color: #b00; }
</style>
</head>
<body>
<h1>Pickup SMS Jobs</h1>
{{if .Notice}}<p class="notice{{if .NoticeIsError}} error{{end}}">{{.Notice}}</p>{{end}}
<h2>Trigger a run</h2>
<form method="post" action="/dashboard/run/review_request">
  <h3>Review request (daily)</h3>
  <label>Date <input type="date" name="date"></label>
  <label><input type="checkbox" name="dry_run" value="1"> dry run</label>
  <button type="submit">Run</button>
</form>
<form method="post" action="/dashboard/run/locker_reminder">
  <h3>Locker reminder (hourly)</h3>
  <label><input type="checkbox" name="dry_run" value="1"> dry run</label>
  <button type="submit">Run</button>
</form>
<h2>Recent runs</h2>
<table>
<tr><th>ID</th><th>Feature</th><th>Started</th><th>Finished</th><th>Dry run</th><th>Fetched</th><th>Sent</th><th>Skipped</th><th>Failed</th><th>Error</th></tr>
{{range .Runs}}
<tr>
  <td>{{.ID}}</td>
  <td>{{.Feature}}</td>
  <td>{{.StartedAt.Format "2006-01-02 15:04:05"}}</td>
  <td>{{if .FinishedAt}}{{.FinishedAt.Format "2006-01-02 15:04:05"}}{{else}}<span class="aborted">unfinished</span>{{end}}</td>
  <td>{{if .DryRun}}yes{{end}}</td>
  <td>{{.Fetched}}</td>
  <td>{{.Sent}}</td>
  <td>{{.Skipped}}</td>
  <td>{{.Failed}}</td>
  <td>{{if .Error}}<span class="aborted">{{.Error}}</span>{{end}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardPage))

type DashboardHandlerInterface interface {
	Show(c fiber.Ctx) error
	TriggerRun(c fiber.Ctx) error
}

type DashboardHandler struct {
	runner *scheduler.JobRunner
	runs   repository.JobRunRepository
}

func NewDashboardHandler(runner *scheduler.JobRunner, runs repository.JobRunRepository) DashboardHandlerInterface {
	return &DashboardHandler{runner: runner, runs: runs}
}

type dashboardRun struct {
	ID         uint
	Feature    string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt *time.Time
	Fetched    int
	Sent       int
	Skipped    int
	Failed     int
	Error      *string
}

type dashboardData struct {
	Notice        string
	NoticeIsError bool
	Runs          []dashboardRun
}

// Show renders the operator page: trigger forms plus the recent run history.
func (h *DashboardHandler) Show(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := h.runs.ListRecent(ctx, 20)
	if err != nil {
		log.Println("Dashboard run listing failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("failed to load runs")
	}

	data := dashboardData{
		Notice:        c.Query("notice"),
		NoticeIsError: c.Query("failed") == "1",
		Runs:          make([]dashboardRun, 0, len(rows)),
	}
	for _, r := range rows {
		data.Runs = append(data.Runs, dashboardRun{
			ID:         r.ID,
			Feature:    r.Feature,
			DryRun:     r.DryRun,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			Fetched:    r.Fetched,
			Sent:       r.Sent,
			Skipped:    r.Skipped,
			Failed:     r.Failed,
			Error:      r.Error,
		})
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		log.Println("Dashboard render failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("failed to render page")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

// TriggerRun handles the dashboard's form posts and redirects back with an
// outcome notice.
func (h *DashboardHandler) TriggerRun(c fiber.Ctx) error {
	feature := c.Params("feature")
	opts, err := runOptionsFrom(c.FormValue("date"), c.FormValue("dry_run") != "")
	if err != nil {
		return h.redirect(c, "Invalid date: "+c.FormValue("date"), true)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	counts, err := h.runner.Run(ctx, feature, opts)
	switch {
	case errors.Is(err, scheduler.ErrUnknownFeature):
		return h.redirect(c, "Unknown job: "+feature, true)
	case errors.Is(err, scheduler.ErrRunInProgress):
		return h.redirect(c, "A "+feature+" run is already in progress", true)
	case err != nil:
		log.Println("Dashboard-triggered run failed", feature, err)
		return h.redirect(c, feature+" run failed: "+err.Error(), true)
	}

	notice := fmt.Sprintf("%s run finished: fetched %d, sent %d, skipped %d, failed %d",
		feature, counts.Fetched, counts.Sent, counts.Skipped(), counts.Failed)
	if opts.DryRun {
		notice = "[dry run] " + notice
	}
	return h.redirect(c, notice, false)
}

func (h *DashboardHandler) redirect(c fiber.Ctx, notice string, failed bool) error {
	target := "/dashboard?notice=" + template.URLQueryEscaper(notice)
	if failed {
		target += "&failed=1"
	}
	return c.Redirect().Status(fiber.StatusSeeOther).To(target)
}
