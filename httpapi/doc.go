// Package httpapi serves the client-facing authentication endpoints on a
// gorilla/mux router: login type discovery, login, logout, UIA-gated device
// deletion and email identity validation.
//
// Every route sits behind middleware.Gate. Errors are written as
// {"errcode", "error"} bodies; interactive-auth re-prompts are written as
// 401 responses carrying the flows payload. Unclassified failures are
// logged under a correlation id that is echoed to the client in place of
// any detail.
package httpapi
