package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// APIError is returned for every non-2xx response from the backend.
//
// Message is "<context> (<status>: <detail>)" where detail is the "message" field of a JSON error body,
// the compacted body when it is JSON without a message, or the status text otherwise.
type APIError struct {
	Message string `json:"message"`
	Info    string `json:"info"` // indented JSON of {status, statusText}
	Status  int    `json:"status"`
}

func (e *APIError) Error() string {
	return e.Message
}

type errorInfo struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
}

func newAPIError(res *http.Response, body []byte, errorContext string) *APIError {
	statusText := statusTextOf(res)
	detail := errorDetail(body, statusText)

	info, err := json.MarshalIndent(errorInfo{Status: res.StatusCode, StatusText: statusText}, "", "  ")
	if err != nil {
		info = []byte(fmt.Sprintf(`{"status": %d}`, res.StatusCode))
	}

	return &APIError{
		Message: fmt.Sprintf("%s (%d: %s)", errorContext, res.StatusCode, detail),
		Info:    string(info),
		Status:  res.StatusCode,
	}
}

// statusTextOf returns the reason phrase sent by the server ("404 Not Found" -> "Not Found"),
// falling back to the standard text for the code.
func statusTextOf(res *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode)))
	if text == "" {
		text = http.StatusText(res.StatusCode)
	}
	return text
}

// errorDetail extracts the best available explanation from an error body. Parse failures are ignored.
func errorDetail(body []byte, statusText string) string {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return statusText
	}

	if obj, ok := parsed.(map[string]any); ok {
		if msg := messageField(obj); msg != "" {
			return msg
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return statusText
	}
	return compact.String()
}

// messageField returns the "message" value as text. Empty, null and false values count as absent.
func messageField(obj map[string]any) string {
	switch v := obj["message"].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if !v {
			return ""
		}
		return "true"
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
