package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/citystash/pickup-sms/app/services"
	"github.com/citystash/pickup-sms/models"
	"github.com/citystash/pickup-sms/repository"
	"github.com/citystash/pickup-sms/utils"
	"github.com/google/uuid"
)

// Pipeline is the eligibility-filtering and idempotent-send pipeline shared
// by all job variants. All collaborators are injected; the pipeline holds no
// process-wide mutable state of its own.
type Pipeline struct {
	bookings repository.BookingRepository
	runs     repository.JobRunRepository
	logs     repository.SendLogRepository
	guard    repository.SentReviewRequestRepository
	optOuts  repository.OptOutRepository
	links    *services.ReviewLinkStore
	sender   services.Sender

	fallbackCity string
	logger       *log.Logger
}

func NewPipeline(
	bookings repository.BookingRepository,
	runs repository.JobRunRepository,
	logs repository.SendLogRepository,
	guard repository.SentReviewRequestRepository,
	optOuts repository.OptOutRepository,
	links *services.ReviewLinkStore,
	sender services.Sender,
	fallbackCity string,
	logger *log.Logger,
) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		bookings:     bookings,
		runs:         runs,
		logs:         logs,
		guard:        guard,
		optOuts:      optOuts,
		links:        links,
		sender:       sender,
		fallbackCity: fallbackCity,
		logger:       logger,
	}
}

// RunOptions carries the per-trigger knobs.
type RunOptions struct {
	// Anchor pins the window to an explicit date instead of "previous
	// day/hour relative to now". Only honored by jobs with an AnchorWindow.
	Anchor *time.Time
	// DryRun sends nothing and claims no durable guard rows (the guard is
	// consulted read-only), but logs and counts exactly as a live run would.
	DryRun bool
}

// RunCounts is the aggregate result of one run.
type RunCounts struct {
	Fetched             int `json:"fetched"`
	Sent                int `json:"sent"`
	Failed              int `json:"failed"`
	SkippedNoPhone      int `json:"skipped_no_phone"`
	SkippedInvalidPhone int `json:"skipped_invalid_phone"`
	SkippedNonUK        int `json:"skipped_non_uk_number"`
	SkippedOptedOut     int `json:"skipped_opted_out"`
	SkippedNoLink       int `json:"skipped_no_review_link"`
	SkippedAlreadySent  int `json:"skipped_already_sent"`
}

// Skipped sums every skip reason.
func (c RunCounts) Skipped() int {
	return c.SkippedNoPhone + c.SkippedInvalidPhone + c.SkippedNonUK +
		c.SkippedOptedOut + c.SkippedNoLink + c.SkippedAlreadySent
}

func (c *RunCounts) countSkip(status models.SendStatus) {
	switch status {
	case models.SendStatusSkippedNoPhone:
		c.SkippedNoPhone++
	case models.SendStatusSkippedBadPhone:
		c.SkippedInvalidPhone++
	case models.SendStatusSkippedNonUK:
		c.SkippedNonUK++
	case models.SendStatusSkippedOptedOut:
		c.SkippedOptedOut++
	case models.SendStatusSkippedNoLink:
		c.SkippedNoLink++
	case models.SendStatusSkippedAlreadySent:
		c.SkippedAlreadySent++
	}
}

// resolvedLink is the tagged result of the two-step review-link resolution:
// direct city first, then the fixed fallback city.
type resolvedLink struct {
	URL          string
	UsedFallback bool
}

// candidate is one booking's state as it moves through the pipeline.
type candidate struct {
	booking *models.Booking
	phone   string // normalized E.164, empty until step (b) passes
	link    resolvedLink
	status  models.SendStatus // zero while still eligible
}

// Run executes the full pipeline for one job: summary row, fetch, filter,
// send, finalize. Per-candidate defects and transport failures are contained
// inside the loop; infrastructure errors abort the run, stamp the summary and
// propagate.
func (p *Pipeline) Run(ctx context.Context, spec JobSpec, opts RunOptions) (RunCounts, error) {
	var counts RunCounts

	window, err := p.resolveWindow(spec, opts)
	if err != nil {
		return counts, err
	}

	run := &models.JobRun{
		Feature:   string(spec.Feature),
		DryRun:    opts.DryRun,
		StartedAt: utils.UTCNow(),
	}
	// The summary row exists before any data is fetched: a crash mid-fetch
	// stays visible as a run with finished_at = NULL.
	if err := p.runs.Save(ctx, run); err != nil {
		return counts, fmt.Errorf("failed to create job run: %w", err)
	}

	counts, err = p.execute(ctx, spec, opts, run, window)
	if err != nil {
		p.abort(ctx, run, counts, err)
		jobRunsTotal.WithLabelValues(string(spec.Feature), "aborted").Inc()
		return counts, err
	}

	run.Fetched = counts.Fetched
	run.Sent = counts.Sent
	run.Skipped = counts.Skipped()
	run.Failed = counts.Failed
	run.FinishedAt = utils.UTCNowPtr()
	if err := p.runs.Update(ctx, run); err != nil {
		return counts, fmt.Errorf("failed to finalize job run: %w", err)
	}

	jobRunsTotal.WithLabelValues(string(spec.Feature), "finished").Inc()
	p.logger.Printf("pipeline: %s run finished fetched=%d sent=%d skipped=%d failed=%d dry_run=%v",
		spec.Feature, counts.Fetched, counts.Sent, counts.Skipped(), counts.Failed, opts.DryRun)
	return counts, nil
}

type timeWindow struct {
	from time.Time
	to   time.Time
}

func (p *Pipeline) resolveWindow(spec JobSpec, opts RunOptions) (timeWindow, error) {
	if opts.Anchor != nil {
		if spec.AnchorWindow == nil {
			return timeWindow{}, fmt.Errorf("job %s does not accept an anchor date", spec.Feature)
		}
		from, to := spec.AnchorWindow(*opts.Anchor)
		return timeWindow{from: from, to: to}, nil
	}
	from, to := spec.Window(utils.UTCNow())
	return timeWindow{from: from, to: to}, nil
}

func (p *Pipeline) execute(ctx context.Context, spec JobSpec, opts RunOptions, run *models.JobRun, window timeWindow) (RunCounts, error) {
	var counts RunCounts

	rows, err := p.bookings.ListPickedUpInWindow(ctx, window.from, window.to, spec.ItemType)
	if err != nil {
		return counts, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	counts.Fetched = len(rows)
	run.Fetched = len(rows)
	if err := p.runs.Update(ctx, run); err != nil {
		return counts, fmt.Errorf("failed to record fetched count: %w", err)
	}
	p.logger.Printf("pipeline: %s fetched %d candidates for [%s, %s)",
		spec.Feature, len(rows), window.from.Format(time.RFC3339), window.to.Format(time.RFC3339))

	// Filtering. Each candidate fails at most one check: the first failing
	// check wins and short-circuits the rest.
	candidates := make([]*candidate, 0, len(rows))
	for _, b := range rows {
		c, err := p.evaluate(ctx, spec, b)
		if err != nil {
			return counts, err
		}
		if c.status != "" {
			counts.countSkip(c.status)
			candidatesSkippedTotal.WithLabelValues(string(spec.Feature), string(c.status)).Inc()
			if err := p.appendLog(ctx, spec, c, nil, nil); err != nil {
				return counts, err
			}
			continue
		}
		candidates = append(candidates, c)
	}

	// Sending, in fetch order. A failure on one candidate never aborts the
	// run.
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.booking.Reference] {
			c.status = models.SendStatusSkippedAlreadySent
		} else if spec.UseGuard {
			if opts.DryRun {
				// Read-only: the dry run reports what a live run would
				// skip without consuming the claim.
				already, err := p.guard.Exists(ctx, c.booking.Reference)
				if err != nil {
					return counts, fmt.Errorf("failed to check idempotency guard: %w", err)
				}
				if already {
					c.status = models.SendStatusSkippedAlreadySent
				}
			} else {
				claimed, err := p.guard.TryClaim(ctx, c.booking.Reference)
				if err != nil {
					return counts, fmt.Errorf("failed to claim idempotency guard: %w", err)
				}
				if !claimed {
					c.status = models.SendStatusSkippedAlreadySent
				}
			}
		}
		seen[c.booking.Reference] = true

		if c.status == models.SendStatusSkippedAlreadySent {
			counts.SkippedAlreadySent++
			candidatesSkippedTotal.WithLabelValues(string(spec.Feature), string(c.status)).Inc()
			if err := p.appendLog(ctx, spec, c, nil, nil); err != nil {
				return counts, err
			}
			continue
		}

		body := utils.RenderTemplate(spec.Template, spec.Fields(c.booking, c.link.URL))
		providerID, sendErr := p.dispatch(ctx, opts, c.phone, body)
		if sendErr != nil {
			counts.Failed++
			c.status = models.SendStatusFailed
			messagesFailedTotal.WithLabelValues(string(spec.Feature)).Inc()
			p.logger.Printf("pipeline: %s send failed booking=%s: %v", spec.Feature, c.booking.Reference, sendErr)
			detail := sendErr.Error()
			if err := p.appendLog(ctx, spec, c, nil, &detail); err != nil {
				return counts, err
			}
			continue
		}

		counts.Sent++
		c.status = models.SendStatusSent
		messagesSentTotal.WithLabelValues(string(spec.Feature)).Inc()
		if err := p.appendLog(ctx, spec, c, &providerID, nil); err != nil {
			return counts, err
		}
	}

	return counts, nil
}

// dispatch routes one message to the transport. A dry-run trigger never
// reaches the transport, regardless of how the sender itself is configured;
// the placeholder id keeps the audit trail shaped like a live send.
func (p *Pipeline) dispatch(ctx context.Context, opts RunOptions, phone, body string) (string, error) {
	if opts.DryRun {
		return "dry-" + uuid.NewString(), nil
	}
	return p.sender.Send(ctx, phone, body)
}

// evaluate applies the filter checks in their fixed order. A returned error
// is infrastructural and aborts the run; data defects land in c.status.
func (p *Pipeline) evaluate(ctx context.Context, spec JobSpec, b *models.Booking) (*candidate, error) {
	c := &candidate{booking: b}

	if b.Phone == "" {
		c.status = models.SendStatusSkippedNoPhone
		return c, nil
	}

	normalized, ok := utils.NormalizePhone(b.Phone, utils.DefaultRegion)
	if !ok {
		c.status = models.SendStatusSkippedBadPhone
		return c, nil
	}
	c.phone = normalized

	if !utils.IsDomesticNumber(normalized, b.Phone) {
		c.status = models.SendStatusSkippedNonUK
		return c, nil
	}

	optedOut, err := p.optOuts.IsOptedOut(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to check opt-out ledger: %w", err)
	}
	if optedOut {
		c.status = models.SendStatusSkippedOptedOut
		return c, nil
	}

	if spec.NeedsReviewLink {
		link, ok := p.resolveReviewLink(b.City)
		if !ok {
			c.status = models.SendStatusSkippedNoLink
			return c, nil
		}
		c.link = link
	}

	return c, nil
}

// resolveReviewLink tries the candidate's own city first, then the fixed
// fallback city. Every caller observes fallback usage through the tag rather
// than re-deriving it.
func (p *Pipeline) resolveReviewLink(city string) (resolvedLink, bool) {
	if url, ok := p.links.PickLink(city); ok {
		return resolvedLink{URL: url}, true
	}
	if url, ok := p.links.PickLink(p.fallbackCity); ok {
		return resolvedLink{URL: url, UsedFallback: true}, true
	}
	return resolvedLink{}, false
}

func (p *Pipeline) appendLog(ctx context.Context, spec JobSpec, c *candidate, providerID, errDetail *string) error {
	entry := &models.SendLog{
		Feature:           string(spec.Feature),
		BookingReference:  c.booking.Reference,
		Phone:             c.phone,
		PickedUpAt:        c.booking.PickedUpAt,
		Status:            c.status,
		ProviderMessageID: providerID,
		UsedFallbackLink:  c.link.UsedFallback,
		Error:             errDetail,
		CreatedAt:         utils.UTCNow(),
	}
	if entry.Phone == "" {
		entry.Phone = c.booking.Phone
	}
	if err := p.logs.Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to append send log: %w", err)
	}
	return nil
}

// abort stamps the summary with the error before propagating it. The stamp is
// best effort: the original error wins even if the update also fails.
func (p *Pipeline) abort(ctx context.Context, run *models.JobRun, counts RunCounts, runErr error) {
	msg := runErr.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	run.Error = &msg
	run.Fetched = counts.Fetched
	run.Sent = counts.Sent
	run.Skipped = counts.Skipped()
	run.Failed = counts.Failed
	run.FinishedAt = utils.UTCNowPtr()
	if err := p.runs.Update(ctx, run); err != nil {
		p.logger.Printf("pipeline: failed to stamp aborted run %d: %v", run.ID, err)
	}
	p.logger.Printf("pipeline: %s run aborted: %v", run.Feature, runErr)
}

// PreviewRow annotates one candidate with the status it would receive.
type PreviewRow struct {
	Reference    string `json:"reference"`
	Phone        string `json:"phone"`
	City         string `json:"city"`
	Stashpoint   string `json:"stashpoint"`
	PickedUpAt   string `json:"picked_up_at"`
	Status       string `json:"status"`
	UsedFallback bool   `json:"used_fallback_link,omitempty"`
}

// PreviewStatusEligible marks a candidate that would be sent to.
const PreviewStatusEligible = "eligible"

// Preview runs fetch and filter only: nothing is sent, no summary row is
// created, and the idempotency guard is read but never claimed.
func (p *Pipeline) Preview(ctx context.Context, spec JobSpec, opts RunOptions) ([]PreviewRow, error) {
	window, err := p.resolveWindow(spec, opts)
	if err != nil {
		return nil, err
	}

	bookings, err := p.bookings.ListPickedUpInWindow(ctx, window.from, window.to, spec.ItemType)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	rows := make([]PreviewRow, 0, len(bookings))
	seen := make(map[string]bool, len(bookings))
	for _, b := range bookings {
		c, err := p.evaluate(ctx, spec, b)
		if err != nil {
			return nil, err
		}
		status := string(c.status)
		if c.status == "" {
			if seen[b.Reference] {
				status = string(models.SendStatusSkippedAlreadySent)
			} else if spec.UseGuard {
				already, err := p.guard.Exists(ctx, b.Reference)
				if err != nil {
					return nil, fmt.Errorf("failed to check idempotency guard: %w", err)
				}
				if already {
					status = string(models.SendStatusSkippedAlreadySent)
				}
			}
			if status == "" {
				status = PreviewStatusEligible
			}
			seen[b.Reference] = true
		}
		rows = append(rows, PreviewRow{
			Reference:    b.Reference,
			Phone:        b.Phone,
			City:         b.City,
			Stashpoint:   b.StashpointName,
			PickedUpAt:   b.PickedUpAt.UTC().Format(time.RFC3339),
			Status:       status,
			UsedFallback: c.link.UsedFallback,
		})
	}
	return rows, nil
}
