package handler

// Response is the envelope every reminder endpoint returns. Data carries
// reminder payloads on success; Message carries the error, or the reason a
// successful request needed no work.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

// NewNoopResponse reports success for a request that required no work, such
// as a manual send racing a dispatcher that already owns the reminder.
func NewNoopResponse(message string) *Response {
	return &Response{
		Status:  "success",
		Message: message,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}
