package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// ErrorBody is the JSON shape of every REST error response. Validation
// failures list each problem in Details.
type ErrorBody struct {
	status  int
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *ErrorBody) Error() string  { return e.Message }
func (e *ErrorBody) GetStatus() int { return e.status }

func newErrorBody(status int, msg string, errs ...error) huma.StatusError {
	body := &ErrorBody{status: status, Code: status, Message: msg}
	for _, err := range errs {
		if err != nil {
			body.Details = append(body.Details, err.Error())
		}
	}
	if body.Message == "" && len(body.Details) > 0 {
		body.Message = body.Details[0]
	}
	return body
}

func init() {
	huma.NewError = newErrorBody
}
