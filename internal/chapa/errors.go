package chapa

import (
	"errors"
	"fmt"
)

var (
	// ErrProvider marks a non-200 or malformed response from Chapa.
	ErrProvider = errors.New("chapa provider error")
	// ErrParse marks a response body that is not the expected JSON.
	ErrParse = errors.New("chapa response parse error")
	// ErrVerificationUnknown marks a verification whose result could not be
	// determined. Callers treat it exactly like a failed payment.
	ErrVerificationUnknown = errors.New("chapa verification unknown")
)

// ProviderError carries the raw provider response for logging.
type ProviderError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chapa provider error: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("chapa provider error: status %d", e.StatusCode)
}

// Is lets errors.Is(err, ErrProvider) match any *ProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
