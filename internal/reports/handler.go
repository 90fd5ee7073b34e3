package reports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/civic-reports/pkg/common"
	"github.com/richxcame/civic-reports/pkg/logger"
	"github.com/richxcame/civic-reports/pkg/middleware"
	"go.uber.org/zap"
)

const defaultCategory = "garbage"

// Service is what the handler needs from the pipeline.
type Service interface {
	Submit(ctx context.Context, sub *Submission) (*Report, error)
	Get(ctx context.Context, id uuid.UUID) (*Report, error)
}

// Handler handles HTTP requests for reports
type Handler struct {
	service       Service
	maxMediaBytes int
}

// NewHandler creates a new reports handler
func NewHandler(service Service, maxMediaBytes int) *Handler {
	if maxMediaBytes <= 0 {
		maxMediaBytes = DefaultMaxMediaBytes
	}
	return &Handler{service: service, maxMediaBytes: maxMediaBytes}
}

// RegisterRoutes mounts the report routes on rg. submitMiddleware runs only
// in front of the submission endpoint.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, submitMiddleware ...gin.HandlerFunc) {
	rg.POST("/reports", append(submitMiddleware, h.SubmitReport)...)
	rg.GET("/reports/:id", h.GetReport)
}

// SubmitReport handles a multipart report submission
func (h *Handler) SubmitReport(c *gin.Context) {
	sub, err := h.readSubmission(c)
	if err != nil {
		common.AppErrorResponse(c, toAppError(err))
		return
	}

	report, err := h.service.Submit(c.Request.Context(), sub)
	if err != nil {
		common.AppErrorResponse(c, toAppError(err))
		return
	}
	middleware.AddLogFields(c,
		zap.String("report_id", report.ID.String()),
		zap.String("report_status", string(report.Status)),
	)

	common.SuccessResponseWithStatus(c, http.StatusCreated, report.Result(), "report received")
}

// GetReport handles getting a report by ID
func (h *Handler) GetReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid report ID")
		return
	}

	report, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		common.AppErrorResponse(c, toAppError(err))
		return
	}

	common.SuccessResponse(c, report)
}

func (h *Handler) readSubmission(c *gin.Context) (*Submission, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return nil, &InvalidInputError{Field: "image", Reason: "image file is required", Err: err}
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, &InvalidInputError{Field: "image", Reason: "image could not be read", Err: err}
	}
	defer file.Close()

	// one byte past the limit so oversize uploads are rejected by validation
	media, err := io.ReadAll(io.LimitReader(file, int64(h.maxMediaBytes)+1))
	if err != nil {
		return nil, &InvalidInputError{Field: "image", Reason: "image could not be read", Err: err}
	}

	sub := &Submission{
		Media:       media,
		MediaType:   mediaType(fileHeader.Header.Get("Content-Type"), media),
		Category:    c.DefaultPostForm("category", defaultCategory),
		Location:    json.RawMessage(c.PostForm("location")),
		Description: c.PostForm("description"),
		Contact:     firstNonEmpty(c.PostForm("contact"), c.PostForm("email")),
	}

	if raw := strings.TrimSpace(c.PostForm("submitter_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, &InvalidInputError{Field: "submitter_id", Reason: "must be a UUID", Err: err}
		}
		sub.SubmitterID = &id
	}

	if raw := strings.TrimSpace(c.PostForm("timestamp")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, &InvalidInputError{Field: "timestamp", Reason: "must be RFC3339", Err: err}
		}
		sub.SubmittedAt = ts.UTC()
	}

	return sub, nil
}

func mediaType(declared string, media []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(media)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func toAppError(err error) *common.AppError {
	var (
		invalid    *InvalidInputError
		storageErr *StorageError
		persistErr *PersistenceError
	)

	switch {
	case errors.As(err, &invalid):
		return common.NewBadRequestError(invalid.Error(), err)
	case errors.As(err, &storageErr):
		return common.NewAppError(http.StatusServiceUnavailable, "media storage unavailable", err)
	case errors.As(err, &persistErr):
		return common.NewAppError(http.StatusInternalServerError, "failed to store report", err)
	case errors.Is(err, ErrReportNotFound):
		return common.NewNotFoundError("report not found", err)
	default:
		logger.Error("unexpected report error", zap.Error(err))
		return common.NewAppError(http.StatusInternalServerError, "internal error", err)
	}
}
