// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/wahelp/mailing-engine/app/dto"
	"github.com/wahelp/mailing-engine/app/middleware"
	businessflow "github.com/wahelp/mailing-engine/business_flow"
	"github.com/gofiber/fiber/v3"
)

// importTimeout bounds one upload; large files run a long transaction.
const importTimeout = 5 * time.Minute

// ImportHandlerInterface defines the contract for user import handlers
type ImportHandlerInterface interface {
	ImportUsers(c fiber.Ctx) error
}

// ImportHandler handles bulk user import requests
type ImportHandler struct {
	importFlow businessflow.ImportFlow
}

// NewImportHandler creates a new import handler
func NewImportHandler(importFlow businessflow.ImportFlow) *ImportHandler {
	return &ImportHandler{importFlow: importFlow}
}

func (h *ImportHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ImportHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ImportUsers handles a multipart user file upload
func (h *ImportHandler) ImportUsers(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "file is required", "FILE_REQUIRED", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "invalid file", "INVALID_FILE", err.Error())
	}
	defer file.Close()

	req := dto.ImportUsersRequest{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		FileSize:    fileHeader.Size,
		File:        file,
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.importFlow.ImportUsers(h.createRequestContext(c, "/api/v1/users/import"), &req, metadata)
	if err != nil {
		if businessflow.IsFileRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "file is required", "FILE_REQUIRED", nil)
		}
		if businessflow.IsInvalidFileFormat(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Expected a CSV or XLSX file", "INVALID_FILE_FORMAT", nil)
		}

		log.Println("User import failed", err)
		return h.ErrorResponse(c, fiber.StatusBadRequest, "User import failed", "IMPORT_FAILED", nil)
	}

	middleware.RecordImport(result.ProcessedRecords)

	return h.SuccessResponse(c, fiber.StatusOK, "Users uploaded successfully", result)
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *ImportHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), importTimeout)

	ctx = context.WithValue(ctx, "request_id", c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup

	return ctx
}
