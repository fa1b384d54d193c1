package flows

import "context"

type LogoutDeviceStore interface {
	DeleteToken(ctx context.Context, token string) error
	Delete(ctx context.Context, userID, deviceID string) error
}

type LogoutMetrics struct {
	Logout        int
	DeviceRevoked int
}

type LogoutEvents struct {
	Logout        string
	DeviceRevoked string
}

// LogoutDeps captures credential revocation dependencies.
type LogoutDeps struct {
	Store      LogoutDeviceStore
	IsNotFound func(error) bool

	Hooks   Hooks
	Metrics LogoutMetrics
	Events  LogoutEvents
}

// RunLogout revokes the calling device's credential. Revoking an already
// revoked credential succeeds.
func RunLogout(ctx context.Context, userID, deviceID, tokenStr string, deps LogoutDeps) error {
	hooks := deps.Hooks.withDefaults()
	if err := deps.Store.DeleteToken(ctx, tokenStr); err != nil {
		if deps.IsNotFound == nil || !deps.IsNotFound(err) {
			return err
		}
	}
	hooks.MetricInc(deps.Metrics.Logout)
	hooks.EmitAudit(ctx, deps.Events.Logout, true, userID, deviceID, "", nil, nil)
	return nil
}

// RunRevokeDevice deletes the (user, device) record and its credential.
func RunRevokeDevice(ctx context.Context, userID, deviceID string, deps LogoutDeps) error {
	hooks := deps.Hooks.withDefaults()
	if err := deps.Store.Delete(ctx, userID, deviceID); err != nil {
		if deps.IsNotFound == nil || !deps.IsNotFound(err) {
			return err
		}
	}
	hooks.MetricInc(deps.Metrics.DeviceRevoked)
	hooks.EmitAudit(ctx, deps.Events.DeviceRevoked, true, userID, deviceID, "", nil, nil)
	return nil
}
