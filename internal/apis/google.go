package apis

import (
	"errors"

	"google.golang.org/api/googleapi"

	"github.com/JakeFAU/seo-pilot/internal/retry"
)

// GoogleError converts a *googleapi.Error into a *retry.StatusError so 429s
// from the generated clients are retried like every other API. Other errors
// pass through.
func GoogleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = gerr.Body
		}
		return &retry.StatusError{Status: gerr.Code, Message: msg, Err: err}
	}
	return err
}
