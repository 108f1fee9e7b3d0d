package checker

import (
	"context"
	"errors"
	"net"
	"syscall"

	"proxy-checker/internal/domain"
)

// Classify maps a transport error onto an ErrorKind. Checks run in priority
// order and the first match wins.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return ""
	}

	if isTimeout(err) {
		return domain.ErrorKindTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return domain.ErrorKindConnectionRefused
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.ErrorKindHostNotFound
	}

	return domain.ErrorKindUnknown
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
