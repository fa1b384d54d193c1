// Package internal contains helper utilities that are private to hsAuth,
// including secure random generation and credential digests.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for login, logout and interactive auth
//   - rate: Redis-backed login throttling
//   - security: posture report derived from engine configuration
//   - stores: single-use login tokens and email identity sessions
//
// # What this package must NOT do
//
//   - Export types that appear in the public hsAuth API.
//   - Be imported by any package outside the hsAuth module.
package internal
