package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/hsAuth/device"
	"github.com/MrEthical07/hsAuth/token"
)

type DeviceStore interface {
	FindByToken(ctx context.Context, token string) (*device.Device, error)
	Upsert(ctx context.Context, d *device.Device) error
	UpdateLastSeen(ctx context.Context, token, ip string, ts int64) error
}

type DeviceMetrics struct {
	DeviceMinted        int
	AuthenticateHit     int
	AuthenticateMiss    int
	AuthenticateLatency int
}

type DeviceErrors struct {
	UnknownToken   error
	DeviceNotFound error
}

// DeviceDeps captures credential issuing and authentication dependencies.
type DeviceDeps struct {
	Store   DeviceStore
	Mint    func(userID, deviceID string) (string, error)
	Parse   func(tokenStr string) (token.Subject, error)
	NewID   func() string
	Now     func() time.Time
	Observe func(metric int, d time.Duration)
	// IsNotFound reports whether a store error means the record is absent.
	IsNotFound func(error) bool

	Hooks   Hooks
	Metrics DeviceMetrics
	Errors  DeviceErrors
}

// MintDeviceInput describes the device a credential is issued to.
type MintDeviceInput struct {
	UserID      string
	DeviceID    string
	DisplayName string
	RemoteAddr  string
}

// RunMintDevice mints the credential for (user, device) and upserts the
// device record with fresh last-seen data. A blank device id is generated.
func RunMintDevice(ctx context.Context, in MintDeviceInput, deps DeviceDeps) (*device.Device, error) {
	hooks := deps.Hooks.withDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = device.NewDeviceID
	}

	deviceID := in.DeviceID
	if deviceID == "" {
		deviceID = deps.NewID()
	}

	tok, err := deps.Mint(in.UserID, deviceID)
	if err != nil {
		return nil, err
	}

	d := &device.Device{
		UserID:      in.UserID,
		DeviceID:    deviceID,
		Token:       tok,
		DisplayName: in.DisplayName,
		LastSeenIP:  in.RemoteAddr,
		LastSeenTS:  deps.Now().UTC().Unix(),
	}
	if err := deps.Store.Upsert(ctx, d); err != nil {
		return nil, err
	}

	hooks.MetricInc(deps.Metrics.DeviceMinted)
	return d, nil
}

// RunAuthenticate resolves a bearer token to its live device. Tokens that
// fail signature checks never reach the store; tokens whose device was
// revoked, or whose record names a different subject, are unknown.
func RunAuthenticate(ctx context.Context, tokenStr string, deps DeviceDeps) (*device.Device, error) {
	hooks := deps.Hooks.withDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	start := deps.Now()
	defer func() {
		if deps.Observe != nil {
			deps.Observe(deps.Metrics.AuthenticateLatency, deps.Now().Sub(start))
		}
	}()

	miss := func() (*device.Device, error) {
		hooks.MetricInc(deps.Metrics.AuthenticateMiss)
		return nil, deps.Errors.UnknownToken
	}

	if tokenStr == "" {
		return miss()
	}

	var subject token.Subject
	if deps.Parse != nil {
		s, err := deps.Parse(tokenStr)
		if err != nil {
			return miss()
		}
		subject = s
	}

	d, err := deps.Store.FindByToken(ctx, tokenStr)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			return miss()
		}
		return nil, err
	}
	if deps.Parse != nil && (d.UserID != subject.UserID || d.DeviceID != subject.DeviceID) {
		return miss()
	}

	hooks.MetricInc(deps.Metrics.AuthenticateHit)
	return d, nil
}

// RunTouchDevice records last-seen data. A device revoked between
// authentication and the touch is reported as not found.
func RunTouchDevice(ctx context.Context, tokenStr, ip string, deps DeviceDeps) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	err := deps.Store.UpdateLastSeen(ctx, tokenStr, ip, deps.Now().UTC().Unix())
	if err != nil && deps.IsNotFound != nil && deps.IsNotFound(err) {
		return deps.Errors.DeviceNotFound
	}
	return err
}

// IsNotFoundAny returns an IsNotFound func matching any of targets.
func IsNotFoundAny(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if t != nil && errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}
