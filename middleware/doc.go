// Package middleware adapts the hsAuth request authentication gate to
// net/http.
//
// # Gate
//
// [Gate] reads a bearer credential from the Authorization header, the
// Authentication header or the access_token query parameter, resolves it
// with Engine.Authenticate and attaches the resulting identity to the
// request context. It never rejects a request. Last-seen data is recorded
// when the engine is configured to do so.
//
// [RequireIdentity] is the enforcing half: it answers 401 for requests the
// gate left unauthenticated.
//
// # What this package must NOT do
//
//   - Parse or mint credentials directly (delegates to Engine).
//   - Access Redis or SQL stores.
package middleware
