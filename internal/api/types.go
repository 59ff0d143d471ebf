package api

// ErrorResponse is a generic JSON error wrapper. The drop server may
// answer with either field populated.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
