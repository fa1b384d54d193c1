package hsAuth

import (
	"context"

	"github.com/MrEthical07/hsAuth/device"
	"github.com/MrEthical07/hsAuth/stage"
)

// User is a registered account. The engine only reads users.
type User struct {
	ID           string
	PasswordHash string
	DisplayName  string
	AvatarURL    string
	Kind         string
}

// Device is a token-bound client instance.
type Device = device.Device

// Identity is the (user, device) pair a bearer credential resolves to.
type Identity struct {
	UserID   string
	DeviceID string
	Token    string
}

// UserProvider resolves user records. GetUser returns ErrUserNotFound for
// unknown ids.
type UserProvider interface {
	GetUser(ctx context.Context, userID string) (User, error)
	Exists(ctx context.Context, userID string) (bool, error)
}

// DeviceStore is the durable token to device mapping. Implementations must
// return ErrDeviceNotFound (or device.ErrNotFound) for missing records.
type DeviceStore interface {
	FindByToken(ctx context.Context, token string) (*Device, error)
	Get(ctx context.Context, userID, deviceID string) (*Device, error)
	Upsert(ctx context.Context, d *Device) error
	UpdateLastSeen(ctx context.Context, token, ip string, ts int64) error
	DeleteToken(ctx context.Context, token string) error
	Delete(ctx context.Context, userID, deviceID string) error
	ListForUser(ctx context.Context, userID string) ([]Device, error)
}

// EmailSender delivers email identity validation codes.
type EmailSender interface {
	SendValidationCode(ctx context.Context, address, sid, code string) error
}

// LoginRequest is the body of a single-shot login.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user,omitempty"`
	Password                 string `json:"password,omitempty"`
	Token                    string `json:"token,omitempty"`
	DeviceID                 string `json:"device_id,omitempty"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	UserID      string `json:"user_id"`
	HomeServer  string `json:"home_server"`
	DeviceID    string `json:"device_id"`
	AccessToken string `json:"access_token"`
}

// FlowInfo is one acceptable stage sequence.
type FlowInfo struct {
	Stages []string `json:"stages"`
}

// AuthenticationFlows is the interactive-auth payload returned to clients.
// Errcode and Error are set only after a failed stage attempt.
type AuthenticationFlows struct {
	Errcode   Errcode                      `json:"errcode,omitempty"`
	Error     string                       `json:"error,omitempty"`
	Completed []string                     `json:"completed"`
	Flows     []FlowInfo                   `json:"flows"`
	Params    map[string]map[string]string `json:"params"`
	Session   string                       `json:"session,omitempty"`
}

// Attempt is one UIA-gated request's auth block.
type Attempt struct {
	Session string
	Type    string
	Proof   stage.Proof
}
