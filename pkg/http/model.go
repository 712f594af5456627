package http

import "time"

// APIResponse represents standard API response.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"sku"`
	Message string                 `json:"message,omitempty" example:"SKU is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse represents a list response.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}

// TimeRange is a query window; zero bounds are open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// ParseTimeRange reads from/to query params. Missing values leave the bound
// open, malformed ones are rejected.
func ParseTimeRange(from, to string) (TimeRange, error) {
	var tr TimeRange
	if from != "" {
		t, ok := ParseTime(from)
		if !ok {
			return tr, BadRequestErrorf("invalid from: %q", from)
		}
		tr.From = t
	}
	if to != "" {
		t, ok := ParseTime(to)
		if !ok {
			return tr, BadRequestErrorf("invalid to: %q", to)
		}
		tr.To = t
	}
	if !tr.From.IsZero() && !tr.To.IsZero() && tr.To.Before(tr.From) {
		return tr, BadRequestError("to must not be before from")
	}
	return tr, nil
}
