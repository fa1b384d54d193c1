package httpapi

import (
	"net/http"
	"strings"

	hsAuth "github.com/MrEthical07/hsAuth"
	"github.com/MrEthical07/hsAuth/middleware"
	"github.com/MrEthical07/hsAuth/stage"
)

type loginFlow struct {
	Type string `json:"type"`
}

type loginFlowsResponse struct {
	Flows []loginFlow `json:"flows"`
}

func (a *api) loginTypes(w http.ResponseWriter, _ *http.Request) {
	types := a.engine.LoginTypes()
	resp := loginFlowsResponse{Flows: make([]loginFlow, 0, len(types))}
	for _, t := range types {
		resp.Flows = append(resp.Flows, loginFlow{Type: t})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req hsAuth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeNotJSON(w)
		return
	}

	resp, err := a.engine.Login(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := a.engine.Logout(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// authDict is the interactive-auth block of a UIA-gated request body.
type authDict struct {
	Type     string `json:"type"`
	Session  string `json:"session"`
	Password string `json:"password"`
	Token    string `json:"token"`
	Response string `json:"response"`
	Code     string `json:"code"`

	ThreepidCreds struct {
		SID          string `json:"sid"`
		ClientSecret string `json:"client_secret"`
	} `json:"threepid_creds"`
}

// attempt builds the engine attempt. The password stage always proves the
// caller's own account, whatever user the body names.
func (d *authDict) attempt(callerID string) hsAuth.Attempt {
	if d == nil {
		return hsAuth.Attempt{}
	}
	return hsAuth.Attempt{
		Session: d.Session,
		Type:    d.Type,
		Proof: stage.Proof{
			User:         callerID,
			Password:     d.Password,
			Token:        d.Token,
			Response:     d.Response,
			Code:         d.Code,
			SID:          d.ThreepidCreds.SID,
			ClientSecret: d.ThreepidCreds.ClientSecret,
		},
	}
}

type deleteDevicesRequest struct {
	Devices []string  `json:"devices"`
	Auth    *authDict `json:"auth"`
}

func (a *api) deleteDevices(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	var req deleteDevicesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeNotJSON(w)
		return
	}

	if err := a.engine.ValidateInteractive(r.Context(), req.Auth.attempt(id.UserID)); err != nil {
		a.writeError(w, r, err)
		return
	}

	for _, deviceID := range req.Devices {
		deviceID = strings.TrimSpace(deviceID)
		if deviceID == "" {
			continue
		}
		if err := a.engine.RevokeDevice(r.Context(), id.UserID, deviceID); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type requestEmailTokenRequest struct {
	ClientSecret string `json:"client_secret"`
	Email        string `json:"email"`
	SendAttempt  int    `json:"send_attempt"`
}

type requestEmailTokenResponse struct {
	SID string `json:"sid"`
}

func (a *api) requestEmailToken(w http.ResponseWriter, r *http.Request) {
	var req requestEmailTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeNotJSON(w)
		return
	}

	sid, err := a.engine.RequestEmailIdentity(r.Context(), req.Email, req.ClientSecret)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requestEmailTokenResponse{SID: sid})
}

type submitEmailTokenRequest struct {
	SID          string `json:"sid"`
	ClientSecret string `json:"client_secret"`
	Token        string `json:"token"`
}

// submitEmailToken accepts the code either as query parameters (the link
// mailed to the user) or as a JSON body.
func (a *api) submitEmailToken(w http.ResponseWriter, r *http.Request) {
	var req submitEmailTokenRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req = submitEmailTokenRequest{
			SID:          q.Get("sid"),
			ClientSecret: q.Get("client_secret"),
			Token:        q.Get("token"),
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		a.writeNotJSON(w)
		return
	}

	if err := a.engine.ConfirmEmailIdentity(r.Context(), req.SID, req.ClientSecret, req.Token); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
