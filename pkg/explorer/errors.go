package explorer

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrRemoteUnavailable wraps transport failures that outlived the client's own
// retry budget.
var ErrRemoteUnavailable = errors.New("explorer unavailable")

// ErrPaginationStalled is returned when a full page does not advance the
// cursor, which happens when a single block holds more events than a page.
var ErrPaginationStalled = errors.New("pagination stalled")

// RemoteAPIError is a structured error returned by the explorer itself.
type RemoteAPIError struct {
	Action     string
	Message    string
	Detail     string
	StatusCode int
}

func (e *RemoteAPIError) Error() string {
	msg := e.Message
	if e.Detail != "" && e.Detail != e.Message {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("explorer %s: http %d: %s", e.Action, e.StatusCode, msg)
	}
	return fmt.Sprintf("explorer %s: %s", e.Action, msg)
}

var permanentMessages = []string{
	"invalid address",
	"invalid api key",
	"missing or invalid action",
	"missing or invalid module",
	"invalid contractaddress",
}

// IsPermanent reports whether err is an explorer error that will not go away
// by asking again. A stalled pagination replays the same pages every time.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrPaginationStalled) {
		return true
	}
	var apiErr *RemoteAPIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError {
		return apiErr.StatusCode != http.StatusTooManyRequests
	}
	text := strings.ToLower(apiErr.Message + " " + apiErr.Detail)
	for _, m := range permanentMessages {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
