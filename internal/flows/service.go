package flows

import (
	"context"

	"github.com/MrEthical07/hsAuth/device"
	"github.com/MrEthical07/hsAuth/stage"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Interactive.Store != nil && s.deps.Device.Store != nil
}

func (s Service) ValidateInteractive(ctx context.Context, sessionID, stageID string, proof stage.Proof) InteractiveResult {
	return RunValidateInteractive(ctx, sessionID, stageID, proof, s.deps.Interactive)
}

func (s Service) PasswordLogin(ctx context.Context, userID, password string) (string, error) {
	return RunPasswordLogin(ctx, userID, password, s.deps.PasswordLogin)
}

func (s Service) TokenLogin(ctx context.Context, token string) (string, error) {
	return RunTokenLogin(ctx, token, s.deps.TokenLogin)
}

func (s Service) MintDevice(ctx context.Context, in MintDeviceInput) (*device.Device, error) {
	return RunMintDevice(ctx, in, s.deps.Device)
}

func (s Service) Authenticate(ctx context.Context, token string) (*device.Device, error) {
	return RunAuthenticate(ctx, token, s.deps.Device)
}

func (s Service) TouchDevice(ctx context.Context, token, ip string) error {
	return RunTouchDevice(ctx, token, ip, s.deps.Device)
}

func (s Service) Logout(ctx context.Context, userID, deviceID, token string) error {
	return RunLogout(ctx, userID, deviceID, token, s.deps.Logout)
}

func (s Service) RevokeDevice(ctx context.Context, userID, deviceID string) error {
	return RunRevokeDevice(ctx, userID, deviceID, s.deps.Logout)
}
