// Package hsAuth is the authentication kernel of a homeserver: it decides
// whether a request may act as a given user and device, and drives the
// multi-stage user-interactive authentication protocol before granting a
// device credential.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// hsAuth is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([Identity], [AuthenticationFlows], [LoginResponse]). Stage
// verifiers live in package stage, device credentials in token and device,
// interactive sessions in interactive. Flow orchestration, single-use
// stores, throttling and audit dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Expose Redis clients or record encodings in its public API.
//   - Keep per-request identity in package state; identity travels in
//     context.Context (see middleware).
//   - Leak backend detail through user-visible error messages.
//
// # Performance contract
//
// Authenticate is the hot path: one signature check and one Redis GET per
// call. ValidateInteractive performs one GET plus one script evaluation per
// stage attempt.
package hsAuth
