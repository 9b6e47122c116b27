package dto

import (
	"github.com/storefront/backend/internal/domain/shared"
)

// Response is the envelope every JSON endpoint answers with
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Meta      *Meta      `json:"meta,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo represents error details. Field names the offending input or
// product for stock and validation failures.
type ErrorInfo struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Field   string             `json:"field,omitempty"`
	Details []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one failed binding rule
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta represents pagination metadata
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewPaginatedResponse maps a page of domain values into a success response
func NewPaginatedResponse[T, R any](page shared.Paginated[T], mapFn func(*T) R) Response {
	items := make([]R, len(page.Items))
	for i := range page.Items {
		items[i] = mapFn(&page.Items[i])
	}
	return Response{
		Success: true,
		Data:    items,
		Meta: &Meta{
			Total:      page.Total,
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalPages: page.TotalPages,
		},
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message, field, requestID string) Response {
	return Response{
		Success:   false,
		Error:     &ErrorInfo{Code: code, Message: message, Field: field},
		RequestID: requestID,
	}
}

// NewValidationErrorResponse creates a binding failure response
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	return Response{
		Success:   false,
		Error:     &ErrorInfo{Code: ErrCodeValidation, Message: message, Details: details},
		RequestID: requestID,
	}
}

// IDRequest represents a request with an ID path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// PageQuery is the common pagination query string
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ToPage converts the query into a normalized domain page
func (q PageQuery) ToPage() shared.Page {
	return shared.Page{Page: q.Page, PageSize: q.PageSize}.Normalize()
}
