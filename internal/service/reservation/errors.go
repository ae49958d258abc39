package reservation

import (
	"errors"
	"fmt"
	"time"
)

var ErrRateLimited = errors.New("too many reservation requests")

// RateLimitedError is returned when a client exceeds the reservation rate.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("%s, retry in %s", ErrRateLimited, e.RetryAfter)
}

func (e RateLimitedError) Unwrap() error {
	return ErrRateLimited
}
