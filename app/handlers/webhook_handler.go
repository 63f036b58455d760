package handlers

import (
	"context"
	"crypto/subtle"
	"log"
	"strings"
	"time"

	"github.com/citystash/pickup-sms/app/dto"
	"github.com/citystash/pickup-sms/models"
	"github.com/citystash/pickup-sms/repository"
	"github.com/citystash/pickup-sms/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Keywords the gateway forwards verbatim. Matching is case-insensitive on
// the trimmed message body.
var (
	stopKeywords  = map[string]bool{"STOP": true, "STOPALL": true, "UNSUBSCRIBE": true, "END": true, "QUIT": true}
	startKeywords = map[string]bool{"START": true, "UNSTOP": true, "YES": true}
)

type WebhookHandlerInterface interface {
	InboundSMS(c fiber.Ctx) error
	DeliveryStatus(c fiber.Ctx) error
}

type WebhookHandler struct {
	optOuts   repository.OptOutRepository
	token     string
	validator *validator.Validate
}

func NewWebhookHandler(optOuts repository.OptOutRepository, token string) WebhookHandlerInterface {
	return &WebhookHandler{optOuts: optOuts, token: token, validator: validator.New()}
}

func (h *WebhookHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *WebhookHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

func (h *WebhookHandler) authorized(c fiber.Ctx) bool {
	if h.token == "" {
		return false
	}
	presented := c.Get("X-Webhook-Token")
	if presented == "" {
		presented = c.Query("token")
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) == 1
}

// InboundSMS processes a message the gateway received from a customer.
// STOP-family keywords opt the sender out; START-family keywords opt them
// back in. Anything else is acknowledged and ignored.
func (h *WebhookHandler) InboundSMS(c fiber.Ctx) error {
	if !h.authorized(c) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid webhook token", "UNAUTHORIZED", nil)
	}

	var req dto.InboundSMSRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", err.Error())
	}

	phone, ok := utils.NormalizePhone(req.From, utils.DefaultRegion)
	if !ok {
		// Unparseable sender; nothing to key the ledger on.
		log.Println("Inbound SMS from unparseable number", req.From)
		return h.SuccessResponse(c, fiber.StatusOK, "Ignored", nil)
	}

	keyword := strings.ToUpper(strings.TrimSpace(req.Body))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch {
	case stopKeywords[keyword]:
		if err := h.optOuts.Add(ctx, phone, models.OptOutSourceKeyword, keyword); err != nil {
			log.Println("Opt-out from inbound keyword failed", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record opt-out", "OPTOUT_FAILED", nil)
		}
		log.Println("Opted out", phone, "via keyword", keyword)
		return h.SuccessResponse(c, fiber.StatusOK, "Opted out", nil)
	case startKeywords[keyword]:
		if _, err := h.optOuts.Remove(ctx, phone); err != nil {
			log.Println("Opt-in from inbound keyword failed", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record opt-in", "OPTIN_FAILED", nil)
		}
		log.Println("Opted in", phone, "via keyword", keyword)
		return h.SuccessResponse(c, fiber.StatusOK, "Opted in", nil)
	default:
		return h.SuccessResponse(c, fiber.StatusOK, "Ignored", nil)
	}
}

// DeliveryStatus logs the gateway's delivery report. Reports are
// informational; the send log already records the outcome we observed at
// submission time.
func (h *WebhookHandler) DeliveryStatus(c fiber.Ctx) error {
	if !h.authorized(c) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid webhook token", "UNAUTHORIZED", nil)
	}

	var req dto.DeliveryStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", err.Error())
	}

	log.Println("Delivery report", req.MessageID, req.Status, req.Detail)
	return h.SuccessResponse(c, fiber.StatusOK, "Acknowledged", nil)
}
