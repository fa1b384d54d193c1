// Package sqlstore provides a relational credential store for hsAuth.
//
// A single [Store] implements both hsAuth.UserProvider and
// hsAuth.DeviceStore on top of sqlx. Two drivers are registered:
// "sqlite" (modernc.org/sqlite, pure Go) and "postgres" (lib/pq).
//
// # Tables
//
//   - hsauth_users: user_id, password_hash, display_name, avatar_url, kind.
//   - hsauth_devices: (user_id, device_id) primary key, token_hash unique,
//     display_name, last_seen_ip, last_seen_ts.
//
// Bearer credentials are indexed by their sha256 digest. Raw tokens are
// never written.
//
// # What this package must NOT do
//
//   - Hash or verify passwords. Callers store PHC strings produced by the
//     password package.
//   - Own schema migrations beyond EnsureSchema.
package sqlstore
