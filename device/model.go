package device

import (
	"strings"

	"github.com/segmentio/ksuid"
)

// Device is a token-bound client instance owned by one user.
type Device struct {
	UserID      string
	DeviceID    string
	Token       string
	DisplayName string
	LastSeenIP  string
	LastSeenTS  int64
}

// NewDeviceID returns a fresh server-generated device id.
func NewDeviceID() string {
	return strings.ToUpper(ksuid.New().String())
}
