package gcal

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// ErrAuthExpired marks a 401-class failure from the remote service. The
// session flips to disconnected on this error instead of retrying; every
// other remote failure is transient and leaves prior state untouched.
var ErrAuthExpired = errors.New("google credential expired or revoked")

// classify wraps a remote error, tagging authorization failures.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == 401) {
		return fmt.Errorf("%s: %w", op, ErrAuthExpired)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%s: %w", op, ErrAuthExpired)
	}
	return fmt.Errorf("%s: %w", op, err)
}
