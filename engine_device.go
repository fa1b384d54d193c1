package hsAuth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	internalflows "github.com/MrEthical07/hsAuth/internal/flows"
)

// Authenticate resolves a bearer token to the identity of its live device.
// Unknown, revoked and forged tokens return ErrUnknownToken; backend faults
// are wrapped in ErrStoreUnavailable.
func (e *Engine) Authenticate(ctx context.Context, token string) (Identity, error) {
	if e == nil || !e.flows.Initialized() {
		return Identity{}, ErrEngineNotReady
	}

	d, err := e.flows.Authenticate(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, ErrUnknownToken) {
			return Identity{}, err
		}
		return Identity{}, e.storeFault("authenticate", err)
	}

	return Identity{UserID: d.UserID, DeviceID: d.DeviceID, Token: d.Token}, nil
}

// TouchDevice records the device's last-seen address and time. Concurrent
// touches of one device are last-writer-wins.
func (e *Engine) TouchDevice(ctx context.Context, token, ip string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	if err := e.flows.TouchDevice(ctx, token, ip); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return err
		}
		return e.storeFault("touch device", err)
	}
	return nil
}

// MintDeviceToken issues the credential for (userID, deviceID) and upserts
// the device. A blank deviceID is generated. The same (user, device) pair
// always yields the same token for a given server name and secret.
func (e *Engine) MintDeviceToken(ctx context.Context, userID, deviceID, displayName, remoteAddr string) (string, string, error) {
	if e == nil || !e.flows.Initialized() {
		return "", "", ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return "", "", newError(ErrcodeBadJSON, "Missing user.", ErrMissingField)
	}

	d, err := e.flows.MintDevice(ctx, internalflows.MintDeviceInput{
		UserID:      userID,
		DeviceID:    strings.TrimSpace(deviceID),
		DisplayName: displayName,
		RemoteAddr:  remoteAddr,
	})
	if err != nil {
		return "", "", e.storeFault("mint device", err)
	}
	return d.DeviceID, d.Token, nil
}

// RevokeDevice deletes a device and its credential. Revoking a missing
// device succeeds.
func (e *Engine) RevokeDevice(ctx context.Context, userID, deviceID string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	if err := e.flows.RevokeDevice(ctx, userID, deviceID); err != nil {
		return e.storeFault("revoke device", err)
	}
	e.logger.Debug("device revoked", zap.String("user_id", userID), zap.String("device_id", deviceID))
	return nil
}

// RevokeToken deletes the device owning token, if any.
func (e *Engine) RevokeToken(ctx context.Context, token string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	if err := e.flows.Logout(ctx, "", "", token); err != nil {
		return e.storeFault("revoke token", err)
	}
	return nil
}

// Devices lists the devices owned by userID.
func (e *Engine) Devices(ctx context.Context, userID string) ([]Device, error) {
	if e == nil || e.deviceStore == nil {
		return nil, ErrEngineNotReady
	}
	ds, err := e.deviceStore.ListForUser(ctx, userID)
	if err != nil {
		return nil, e.storeFault("list devices", err)
	}
	return ds, nil
}
