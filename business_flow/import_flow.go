// Package businessflow contains the core business logic and use cases for mailing workflows
package businessflow

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/wahelp/mailing-engine/app/dto"
	"github.com/wahelp/mailing-engine/models"
	"github.com/wahelp/mailing-engine/repository"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ImportFlow handles the bulk user import business logic
type ImportFlow interface {
	ImportUsers(ctx context.Context, req *dto.ImportUsersRequest, metadata *ClientMetadata) (*dto.ImportUsersResponse, error)
}

// ImportFlowImpl implements the user import business flow
type ImportFlowImpl struct {
	userRepo repository.UserRepository
	db       *gorm.DB
	logger   *log.Logger
}

// NewImportFlow creates a new import flow instance
func NewImportFlow(userRepo repository.UserRepository, db *gorm.DB, logger *log.Logger) ImportFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &ImportFlowImpl{
		userRepo: userRepo,
		db:       db,
		logger:   logger,
	}
}

// ImportUsers upserts users from an uploaded CSV or XLSX file. Rows are
// `[phone_number, name]`; a row with fewer than two columns, or with
// either field empty after trimming, is skipped and counted. All accepted
// rows commit in one transaction: a persistence failure mid-file leaves
// no partial import behind.
func (s *ImportFlowImpl) ImportUsers(ctx context.Context, req *dto.ImportUsersRequest, metadata *ClientMetadata) (*dto.ImportUsersResponse, error) {
	if req == nil || req.File == nil {
		return nil, NewBusinessError("FILE_REQUIRED", "File is required", ErrFileRequired)
	}

	readRows, err := s.rowReaderFor(req)
	if err != nil {
		return nil, err
	}

	processed := 0
	skipped := 0

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return readRows(func(row []string) error {
			if len(row) < 2 {
				skipped++
				return nil
			}

			number := strings.TrimSpace(row[0])
			name := strings.TrimSpace(row[1])
			if number == "" || name == "" {
				skipped++
				return nil
			}

			user := &models.User{PhoneNumber: number, Name: name}
			if err := s.userRepo.Upsert(txCtx, user); err != nil {
				return err
			}
			processed++
			return nil
		})
	})
	if err != nil {
		var businessErr *BusinessError
		if errors.As(err, &businessErr) {
			return nil, err
		}
		return nil, NewBusinessError("IMPORT_FAILED", "User import failed", err)
	}

	s.logger.Printf("user import finished: processed=%d skipped=%d", processed, skipped)

	return &dto.ImportUsersResponse{
		ProcessedRecords: processed,
		SkippedRecords:   skipped,
	}, nil
}

// rowReaderFor selects a parser based on the uploaded file's extension
// and content type. CSV is the primary format; XLSX is accepted with the
// same two-column contract.
func (s *ImportFlowImpl) rowReaderFor(req *dto.ImportUsersRequest) (func(handle func([]string) error) error, error) {
	ext := strings.ToLower(filepath.Ext(req.Filename))

	switch {
	case ext == ".csv" || req.ContentType == "text/csv":
		return func(handle func([]string) error) error {
			return readCSVRows(req.File, handle)
		}, nil
	case ext == ".xlsx":
		return func(handle func([]string) error) error {
			return readXLSXRows(req.File, handle)
		}, nil
	default:
		return nil, NewBusinessError("INVALID_FILE_FORMAT", "Expected a CSV or XLSX file", ErrInvalidFileFormat)
	}
}

func readCSVRows(r io.Reader, handle func([]string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return NewBusinessError("INVALID_FILE_FORMAT", "Malformed CSV file", fmt.Errorf("%w: %v", ErrInvalidFileFormat, err))
		}
		if err := handle(row); err != nil {
			return err
		}
	}
}

func readXLSXRows(r io.Reader, handle func([]string) error) error {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return NewBusinessError("INVALID_FILE_FORMAT", "Malformed XLSX file", fmt.Errorf("%w: %v", ErrInvalidFileFormat, err))
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return NewBusinessError("INVALID_FILE_FORMAT", "XLSX file has no sheets", ErrInvalidFileFormat)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return NewBusinessError("INVALID_FILE_FORMAT", "Failed to read XLSX rows", fmt.Errorf("%w: %v", ErrInvalidFileFormat, err))
	}

	for _, row := range rows {
		if err := handle(row); err != nil {
			return err
		}
	}
	return nil
}
