// Package stores provides Redis-backed, short-lived record stores used by
// login and interactive-auth flows: single-use login tokens and email
// identity validation sessions.
//
// # Design
//
// Records are binary encoded with a version byte and stored with a TTL.
// Consume-style mutations run as Lua scripts (GET, validate, DEL or SET) so
// concurrent submissions cannot both succeed. Secrets are stored as sha256
// digests and compared in constant time in Go after the script returns.
//
// # What this package must NOT do
//
//   - Import hsAuth or any sibling internal package other than internal.
//   - Log or expose plaintext secrets.
package stores
