package sheets

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// IsRateLimited reports whether err is the Sheets API refusing a request because a
// quota was exceeded. Those are the only errors the ledger retries.
func IsRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	if apiErr.Code == http.StatusForbidden {
		for _, item := range apiErr.Errors {
			switch item.Reason {
			case "rateLimitExceeded", "userRateLimitExceeded":
				return true
			}
		}
	}
	return false
}
