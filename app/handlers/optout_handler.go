package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/citystash/pickup-sms/app/dto"
	"github.com/citystash/pickup-sms/models"
	"github.com/citystash/pickup-sms/repository"
	"github.com/citystash/pickup-sms/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type OptOutHandlerInterface interface {
	List(c fiber.Ctx) error
	Add(c fiber.Ctx) error
	Remove(c fiber.Ctx) error
}

type OptOutHandler struct {
	optOuts   repository.OptOutRepository
	validator *validator.Validate
}

func NewOptOutHandler(optOuts repository.OptOutRepository) OptOutHandlerInterface {
	return &OptOutHandler{optOuts: optOuts, validator: validator.New()}
}

func (h *OptOutHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *OptOutHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// List returns ledger entries, optionally filtered by a phone substring via
// the q query parameter.
func (h *OptOutHandler) List(c fiber.Ctx) error {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		rows []*models.OptOut
		err  error
	)
	if q := c.Query("q"); q != "" {
		rows, err = h.optOuts.Search(ctx, q, limit)
	} else {
		rows, err = h.optOuts.List(ctx, limit)
	}
	if err != nil {
		log.Println("List opt-outs failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list opt-outs", "LIST_OPTOUTS_FAILED", nil)
	}

	out := dto.ListOptOutsResponse{OptOuts: make([]dto.OptOutEntry, 0, len(rows))}
	for _, r := range rows {
		out.OptOuts = append(out.OptOuts, dto.OptOutEntry{
			Phone:     r.Phone,
			Source:    string(r.Source),
			Note:      r.Note,
			CreatedAt: r.CreatedAt,
		})
	}
	out.Total = len(out.OptOuts)
	return h.SuccessResponse(c, fiber.StatusOK, "Opt-outs retrieved", out)
}

// Add opts a phone out manually. The ledger is keyed on normalized phones,
// so the handler normalizes before writing.
func (h *OptOutHandler) Add(c fiber.Ctx) error {
	var req dto.AddOptOutRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", err.Error())
	}

	phone, ok := utils.NormalizePhone(req.Phone, utils.DefaultRegion)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Phone number could not be normalized", "INVALID_PHONE", nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.optOuts.Add(ctx, phone, models.OptOutSourceManual, req.Note); err != nil {
		log.Println("Add opt-out failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to add opt-out", "ADD_OPTOUT_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Phone opted out", dto.OptOutEntry{
		Phone:  phone,
		Source: string(models.OptOutSourceManual),
		Note:   req.Note,
	})
}

// Remove opts a phone back in.
func (h *OptOutHandler) Remove(c fiber.Ctx) error {
	var req dto.RemoveOptOutRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", err.Error())
	}

	phone, ok := utils.NormalizePhone(req.Phone, utils.DefaultRegion)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Phone number could not be normalized", "INVALID_PHONE", nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	removed, err := h.optOuts.Remove(ctx, phone)
	if err != nil {
		log.Println("Remove opt-out failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to remove opt-out", "REMOVE_OPTOUT_FAILED", nil)
	}
	if !removed {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Phone is not opted out", "OPTOUT_NOT_FOUND", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Phone opted back in", nil)
}
