package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	// ErrUnauthorized is returned after a 401 ended the session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRequestFailed matches every *RequestError.
	ErrRequestFailed = errors.New("request failed")
)

// RequestError is a non-2xx response other than an authenticated 401.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return ErrRequestFailed
}

// errorBody covers the error shapes emitted by Django REST framework.
type errorBody struct {
	Detail         string   `json:"detail"`
	Message        string   `json:"message"`
	NonFieldErrors []string `json:"non_field_errors"`
}

func newRequestError(status int, body []byte) *RequestError {
	return &RequestError{
		StatusCode: status,
		Message:    errorMessage(status, body),
	}
}

func errorMessage(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case strings.TrimSpace(eb.Detail) != "":
			return eb.Detail
		case strings.TrimSpace(eb.Message) != "":
			return eb.Message
		case len(eb.NonFieldErrors) > 0 && eb.NonFieldErrors[0] != "":
			return eb.NonFieldErrors[0]
		}
	}

	return fmt.Sprintf("HTTP error! status: %d", status)
}
