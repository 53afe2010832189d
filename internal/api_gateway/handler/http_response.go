package handler

import (
	"net/http"

	"github.com/carebridge-wallet-ledger/internal/api_gateway/middleware"
	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API response. Exactly one of Data and
// Error is set; Meta only accompanies list data.
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo carries a machine readable code next to the message
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo describes the page of a list response
type MetaInfo struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
	TotalItems int64 `json:"total_items"`
	HasMore    bool  `json:"has_more"`
}

func pageMeta(page, perPage int, totalItems int64) *MetaInfo {
	meta := &MetaInfo{Page: page, PerPage: perPage, TotalItems: totalItems}
	if perPage <= 0 {
		return meta
	}
	meta.TotalPages = int((totalItems + int64(perPage) - 1) / int64(perPage))
	meta.HasMore = page < meta.TotalPages
	return meta
}

// NewPaginatedResponse wraps one page of items
func NewPaginatedResponse(data interface{}, page, perPage int, totalItems int64) *Response {
	return &Response{Data: data, Meta: pageMeta(page, perPage, totalItems)}
}

func respond(c *gin.Context, status int, resp *Response) {
	resp.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(status, resp)
}

func RespondWithData(c *gin.Context, status int, data interface{}) {
	respond(c, status, &Response{Data: data})
}

func RespondWithError(c *gin.Context, status int, code, message string) {
	respond(c, status, &Response{Error: &ErrorInfo{Code: code, Message: message}})
}

func RespondWithPaginatedData(c *gin.Context, data interface{}, page, perPage int, totalItems int64) {
	respond(c, http.StatusOK, NewPaginatedResponse(data, page, perPage, totalItems))
}

func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondAccepted is used when the gateway has not settled the intent yet
func RespondAccepted(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusAccepted, data)
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Unauthorized"
	}
	RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}
