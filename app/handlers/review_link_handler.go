package handlers

import (
	"log"
	"path/filepath"
	"strings"

	"github.com/citystash/pickup-sms/app/dto"
	"github.com/citystash/pickup-sms/app/services"
	"github.com/gofiber/fiber/v3"
)

type ReviewLinkHandlerInterface interface {
	Reload(c fiber.Ctx) error
	Upload(c fiber.Ctx) error
}

type ReviewLinkHandler struct {
	links    *services.ReviewLinkStore
	filePath string
}

func NewReviewLinkHandler(links *services.ReviewLinkStore, filePath string) ReviewLinkHandlerInterface {
	return &ReviewLinkHandler{links: links, filePath: filePath}
}

func (h *ReviewLinkHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *ReviewLinkHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// Reload re-reads the configured review-link file and atomically swaps the
// in-memory pool. Runs in flight keep the snapshot they started with.
func (h *ReviewLinkHandler) Reload(c fiber.Ctx) error {
	rows, err := h.links.LoadCSVFile(h.filePath)
	if err != nil {
		log.Println("Review link reload failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reload review links", "RELOAD_FAILED", err.Error())
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Review links reloaded", dto.ReloadReviewLinksResponse{
		Rows:   rows,
		Cities: h.links.Cities(),
	})
}

// Upload replaces the pool from an uploaded CSV or XLSX file. The format is
// chosen by file extension.
func (h *ReviewLinkHandler) Upload(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Missing file upload", "MISSING_FILE", nil)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Failed to open upload", "INVALID_FILE", nil)
	}
	defer f.Close()

	var rows int
	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".csv":
		rows, err = h.links.LoadCSV(f)
	case ".xlsx":
		rows, err = h.links.LoadXLSX(f)
	default:
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Unsupported file type, expected .csv or .xlsx", "UNSUPPORTED_FILE_TYPE", nil)
	}
	if err != nil {
		log.Println("Review link upload failed", err)
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse review links", "PARSE_FAILED", err.Error())
	}

	log.Println("Review link pool replaced from upload", fileHeader.Filename, rows, "rows")
	return h.SuccessResponse(c, fiber.StatusOK, "Review links uploaded", dto.ReloadReviewLinksResponse{
		Rows:   rows,
		Cities: h.links.Cities(),
	})
}
