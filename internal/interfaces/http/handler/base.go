package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/logger"
	"github.com/editdesk/backend/internal/interfaces/http/dto"
	"github.com/editdesk/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// upstreamError is implemented by errors of the external ledger client
type upstreamError interface {
	error
	Temporary() bool
}

func getRequestID(c *gin.Context) string {
	return middleware.GetRequestID(c)
}

// caller returns the partner and actor of a partner scoped request. Both are
// set by the identity middleware; a missing value is a routing mistake.
func (h *BaseHandler) caller(c *gin.Context) (uuid.UUID, shared.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		h.Unauthorized(c, "Caller identity required")
		return uuid.Nil, shared.Actor{}, false
	}
	partnerID, ok := middleware.GetPartnerID(c)
	if !ok {
		h.BadRequest(c, middleware.HeaderPartnerID+" header is required")
		return uuid.Nil, shared.Actor{}, false
	}
	return partnerID, actor, true
}

// actor returns the caller of a request that is not partner scoped
func (h *BaseHandler) actor(c *gin.Context) (shared.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		h.Unauthorized(c, "Caller identity required")
		return shared.Actor{}, false
	}
	return actor, true
}

// pathID parses a UUID path parameter
func (h *BaseHandler) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// orderID parses the :id parameter and tags the request logger with it
func (h *BaseHandler) orderID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := h.pathID(c, "id")
	if ok {
		c.Request = c.Request.WithContext(logger.WithOrder(c.Request.Context(), id))
	}
	return id, ok
}

// bindJSON binds the body and answers 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.bindError(c, err)
		return false
	}
	return true
}

// bindQuery binds query parameters and answers 400 on failure
func (h *BaseHandler) bindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.bindError(c, err)
		return false
	}
	return true
}

// validateEmpty checks the binding rules of a request sent without a body
func validateEmpty(obj any) error {
	return binding.Validator.ValidateStruct(obj)
}

func (h *BaseHandler) bindError(c *gin.Context, err error) {
	if middleware.IsValidationError(err) {
		middleware.HandleValidationError(c, err)
		return
	}
	h.BadRequest(c, "Invalid request body: "+err.Error())
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Committed answers a command whose change is committed. A degraded
// dispatch is reported as 202 so clients know realtime updates lag.
func (h *BaseHandler) Committed(c *gin.Context, data any, degraded bool, created bool) {
	switch {
	case degraded:
		c.Header("X-Dispatch-Degraded", "true")
		c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
	case created:
		h.Created(c, data)
	default:
		h.Success(c, data)
	}
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleDomainError converts domain errors to HTTP responses. Details such
// as the order state, the revision limit or the missing mapping entries are
// passed through.
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) bool {
	domainErr, ok := shared.AsDomainError(err)
	if !ok {
		return false
	}
	code := dto.NormalizeErrorCode(domainErr.Code)
	resp := dto.NewErrorResponseWithRequestID(code, domainErr.Message, getRequestID(c))
	resp.Error.Details = domainErr.Details
	c.JSON(dto.GetHTTPStatus(code), resp)
	return true
}

// HandleError is a generic error handler that handles both domain and standard errors
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	if h.HandleDomainError(c, err) {
		return
	}

	var upstream upstreamError
	if errors.As(err, &upstream) {
		logger.L(c.Request.Context()).Warn("ledger call failed", zap.Error(err))
		h.Error(c, http.StatusBadGateway, dto.ErrCodeLedgerUnavailable, "Accounting ledger request failed")
		return
	}

	logger.L(c.Request.Context()).Error("request failed", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}

// pageOf returns the page and page size a list was served with
func pageOf(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
