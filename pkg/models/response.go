package models

// ErrorResponse is the body of every non-2xx API answer. Errors maps request
// fields to what is wrong with them.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}
