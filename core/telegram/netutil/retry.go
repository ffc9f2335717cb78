// Package netutil classifies network errors returned by the Bot API client.
package netutil

import (
	"errors"
	"net"
)

// ShouldRetry reports whether err looks like a transient transport failure:
// a timeout or a failed dial. Errors carried in a response (4xx, 5xx, Telegram
// API errors) are never retried here.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
