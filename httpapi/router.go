package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	hsAuth "github.com/MrEthical07/hsAuth"
	"github.com/MrEthical07/hsAuth/middleware"
)

const clientPrefix = "/_matrix/client/r0"

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// Options configures NewRouter.
type Options struct {
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
	Logger  *zap.Logger
}

type api struct {
	engine *hsAuth.Engine
	logger *zap.Logger
}

// NewRouter returns the client API routes behind the request gate.
func NewRouter(engine *hsAuth.Engine, opts Options) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = engine.Logger()
	}
	a := &api{engine: engine, logger: logger}

	r := mux.NewRouter()
	r.Use(middleware.Gate(engine))

	c := r.PathPrefix(clientPrefix).Subrouter()
	c.HandleFunc("/login", a.loginTypes).Methods(http.MethodGet)
	c.HandleFunc("/login", a.login).Methods(http.MethodPost)
	c.Handle("/logout", middleware.RequireIdentity(http.HandlerFunc(a.logout))).Methods(http.MethodPost)
	c.Handle("/delete_devices", middleware.RequireIdentity(http.HandlerFunc(a.deleteDevices))).Methods(http.MethodPost)
	c.HandleFunc("/account/3pid/email/requestToken", a.requestEmailToken).Methods(http.MethodPost)
	c.HandleFunc("/account/3pid/email/submitToken", a.submitEmailToken).Methods(http.MethodGet, http.MethodPost)

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Errcode: string(hsAuth.ErrcodeNotFound), Error: "Unrecognized request"})
	})

	return r
}
