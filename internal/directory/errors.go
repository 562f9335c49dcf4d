package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const maxReasonLen = 512

// Error describes a failed call to the agent directory.
type Error struct {
	Op      string
	Status  int // zero when no response was received
	Reason  string
	Timeout bool
	// Partial marks a listing that broke off after some pages were read.
	Partial bool
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("directory %s: timed out", e.Op)
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("directory %s: %v", e.Op, e.Err)
	case e.Partial:
		return fmt.Sprintf("directory %s: listing interrupted: status %d", e.Op, e.Status)
	case e.Reason != "":
		return fmt.Sprintf("directory %s: status %d: %s", e.Op, e.Status, e.Reason)
	default:
		return fmt.Sprintf("directory %s: status %d", e.Op, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Rejected reports whether the directory refused the request with a client
// error. An interrupted listing is never a refusal.
func (e *Error) Rejected() bool {
	return !e.Partial && e.Status >= 400 && e.Status < 500 &&
		e.Status != http.StatusRequestTimeout && e.Status != http.StatusTooManyRequests
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// errorReason extracts a human readable reason from an error body. The directory
// answers with VndErrors arrays, {"error"} / {"message"} objects, or plain text.
func errorReason(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var vnd []struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &vnd); err == nil {
		msgs := make([]string, 0, len(vnd))
		for _, v := range vnd {
			if v.Message != "" {
				msgs = append(msgs, v.Message)
			}
		}
		if len(msgs) > 0 {
			return truncate(strings.Join(msgs, "; "))
		}
	}

	var obj struct {
		Error    string `json:"error"`
		Message  string `json:"message"`
		Embedded struct {
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"_embedded"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		switch {
		case obj.Message != "":
			return truncate(obj.Message)
		case obj.Error != "":
			return truncate(obj.Error)
		case len(obj.Embedded.Errors) > 0 && obj.Embedded.Errors[0].Message != "":
			return truncate(obj.Embedded.Errors[0].Message)
		}
	}

	return truncate(trimmed)
}

func truncate(s string) string {
	if len(s) <= maxReasonLen {
		return s
	}
	return s[:maxReasonLen]
}
