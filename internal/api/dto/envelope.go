package dto

// Envelope is the success body shared by every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ListEnvelope adds pagination fields to Envelope.
type ListEnvelope struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Page    int  `json:"page,omitempty"`
	Pages   int  `json:"pages,omitempty"`
	Limit   int  `json:"limit,omitempty"`
	Data    any  `json:"data"`
}

// ErrorEnvelope is the failure body rendered by the error middleware.
type ErrorEnvelope struct {
	Success bool         `json:"success"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
	Details any          `json:"details,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// FieldError mirrors a rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// OK wraps data in a success envelope.
func OK(message string, data any) Envelope {
	return Envelope{Success: true, Message: message, Data: data}
}
