// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/wahelp/mailing-engine/app/dto"
	"github.com/wahelp/mailing-engine/app/middleware"
	businessflow "github.com/wahelp/mailing-engine/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// dispatchTimeout bounds one dispatch invocation. The loop itself is
// unbounded in recipient count, so this is deliberately generous.
const dispatchTimeout = 10 * time.Minute

// MailingHandlerInterface defines the contract for mailing handlers
type MailingHandlerInterface interface {
	CreateMailing(c fiber.Ctx) error
	DispatchMailing(c fiber.Ctx) error
	GetMailing(c fiber.Ctx) error
	ListMailings(c fiber.Ctx) error
}

// MailingHandler handles mailing-related HTTP requests
type MailingHandler struct {
	mailingFlow businessflow.MailingFlow
	validator   *validator.Validate
}

// NewMailingHandler creates a new mailing handler
func NewMailingHandler(mailingFlow businessflow.MailingFlow) *MailingHandler {
	return &MailingHandler{
		mailingFlow: mailingFlow,
		validator:   validator.New(),
	}
}

func (h *MailingHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *MailingHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateMailing handles mailing creation with its cohort snapshot
func (h *MailingHandler) CreateMailing(c fiber.Ctx) error {
	var req dto.CreateMailingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.mailingFlow.CreateMailing(h.createRequestContext(c, "/api/v1/mailings"), &req, metadata)
	if err != nil {
		if businessflow.IsMailingTitleRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Mailing title must not be empty", "MAILING_TITLE_REQUIRED", nil)
		}
		if businessflow.IsMailingTextRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Mailing text must not be empty", "MAILING_TEXT_REQUIRED", nil)
		}

		log.Println("Mailing creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Mailing creation failed", "MAILING_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Mailing created successfully", result)
}

// DispatchMailing handles a dispatch run for one mailing
func (h *MailingHandler) DispatchMailing(c fiber.Ctx) error {
	var req dto.DispatchMailingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	ctx := h.createRequestContextWithTimeout(c, "/api/v1/mailings/dispatch", dispatchTimeout)
	result, err := h.mailingFlow.Dispatch(ctx, &req, metadata)
	if err != nil {
		if businessflow.IsMailingNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Mailing not found", "MAILING_NOT_FOUND", nil)
		}
		if businessflow.IsDispatchAlreadyRunning(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "A dispatch run for this mailing is already in progress", "DISPATCH_IN_PROGRESS", nil)
		}

		log.Println("Mailing dispatch failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Mailing dispatch failed", "DISPATCH_FAILED", nil)
	}

	middleware.RecordDispatchRun(result.Status, result.ProcessedInThisRun)

	return h.SuccessResponse(c, fiber.StatusOK, "Mailing dispatched", result)
}

// GetMailing returns one mailing with aggregate delivery counts
func (h *MailingHandler) GetMailing(c fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid mailing id", "INVALID_MAILING_ID", nil)
	}

	req := dto.GetMailingRequest{MailingID: uint(id)}

	result, err := h.mailingFlow.GetMailing(h.createRequestContext(c, "/api/v1/mailings/:id"), &req)
	if err != nil {
		if businessflow.IsMailingNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Mailing not found", "MAILING_NOT_FOUND", nil)
		}

		log.Println("Mailing lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Mailing lookup failed", "MAILING_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Mailing retrieved", result)
}

// ListMailings returns a page of mailings, newest first
func (h *MailingHandler) ListMailings(c fiber.Ctx) error {
	var req dto.ListMailingsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.mailingFlow.ListMailings(h.createRequestContext(c, "/api/v1/mailings"), &req)
	if err != nil {
		if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "INVALID_PAGINATION", nil)
		}

		log.Println("Mailing listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Mailing listing failed", "MAILING_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Mailings retrieved", result)
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *MailingHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *MailingHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, "request_id", c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup

	return ctx
}
