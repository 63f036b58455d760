// Package handlers contains the HTTP handlers for the operator API, the
// inbound SMS webhooks, and the dashboard.
package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/citystash/pickup-sms/app/dto"
	"github.com/citystash/pickup-sms/app/scheduler"
	"github.com/citystash/pickup-sms/repository"
	"github.com/citystash/pickup-sms/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type JobHandlerInterface interface {
	RunJob(c fiber.Ctx) error
	PreviewJob(c fiber.Ctx) error
	ListRuns(c fiber.Ctx) error
}

type JobHandler struct {
	runner    *scheduler.JobRunner
	runs      repository.JobRunRepository
	validator *validator.Validate
}

func NewJobHandler(runner *scheduler.JobRunner, runs repository.JobRunRepository) JobHandlerInterface {
	return &JobHandler{runner: runner, runs: runs, validator: validator.New()}
}

func (h *JobHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *JobHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// RunJob triggers one job run immediately. Runs can take minutes with the
// inter-send delay, so the request context gets a generous timeout.
func (h *JobHandler) RunJob(c fiber.Ctx) error {
	feature := c.Params("feature")

	var req dto.RunJobRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", nil)
		}
		if err := h.validator.Struct(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", err.Error())
		}
	}

	opts, err := runOptionsFrom(req.Date, req.DryRun)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid anchor date", "INVALID_DATE", nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	counts, err := h.runner.Run(ctx, feature, opts)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrUnknownFeature):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Unknown job feature", "UNKNOWN_FEATURE", nil)
		case errors.Is(err, scheduler.ErrRunInProgress):
			return h.ErrorResponse(c, fiber.StatusConflict, "A run of this job is already in progress", "RUN_IN_PROGRESS", nil)
		default:
			log.Println("Job run failed", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Job run failed", "JOB_RUN_FAILED", err.Error())
		}
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Job run completed", runResponseFrom(feature, opts.DryRun, counts))
}

// PreviewJob runs fetch+filter only and returns the annotated candidates.
func (h *JobHandler) PreviewJob(c fiber.Ctx) error {
	feature := c.Params("feature")

	opts, err := runOptionsFrom(c.Query("date"), false)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid anchor date", "INVALID_DATE", nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	rows, err := h.runner.Preview(ctx, feature, opts)
	if err != nil {
		if errors.Is(err, scheduler.ErrUnknownFeature) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Unknown job feature", "UNKNOWN_FEATURE", nil)
		}
		log.Println("Job preview failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Job preview failed", "JOB_PREVIEW_FAILED", err.Error())
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Preview generated", dto.PreviewJobResponse{
		Feature:    feature,
		Candidates: rows,
		Total:      len(rows),
	})
}

// ListRuns returns the most recent job run summaries.
func (h *JobHandler) ListRuns(c fiber.Ctx) error {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runs, err := h.runs.ListRecent(ctx, limit)
	if err != nil {
		log.Println("List job runs failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list job runs", "LIST_JOB_RUNS_FAILED", nil)
	}

	out := dto.ListJobRunsResponse{Runs: make([]dto.JobRunSummary, 0, len(runs))}
	for _, r := range runs {
		out.Runs = append(out.Runs, dto.JobRunSummary{
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
	return h.SuccessResponse(c, fiber.StatusOK, "Job runs retrieved", out)
}

func runOptionsFrom(date string, dryRun bool) (scheduler.RunOptions, error) {
	opts := scheduler.RunOptions{DryRun: dryRun}
	if date != "" {
		anchor, err := time.ParseInLocation("2006-01-02", date, utils.ServiceLocation())
		if err != nil {
			return opts, err
		}
		opts.Anchor = &anchor
	}
	return opts, nil
}

func runResponseFrom(feature string, dryRun bool, counts scheduler.RunCounts) dto.RunJobResponse {
	return dto.RunJobResponse{
		Feature:             feature,
		DryRun:              dryRun,
		Fetched:             counts.Fetched,
		Sent:                counts.Sent,
		Failed:              counts.Failed,
		Skipped:             counts.Skipped(),
		SkippedNoPhone:      counts.SkippedNoPhone,
		SkippedInvalidPhone: counts.SkippedInvalidPhone,
		SkippedNonUK:        counts.SkippedNonUK,
		SkippedOptedOut:     counts.SkippedOptedOut,
		SkippedNoLink:       counts.SkippedNoLink,
		SkippedAlreadySent:  counts.SkippedAlreadySent,
	}
}
