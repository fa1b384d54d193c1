// Package interactive persists user-interactive authentication sessions in
// Redis.
//
// # Binary encoding
//
// A session is stored as: version byte, created-at (int64 big-endian unix
// seconds), completed-stage count, then each completed stage id as a
// length-prefixed string. The same layout is parsed inside the Lua script
// that applies stage completion, so the Go encoder and the script must
// change together.
//
// # Atomicity
//
// [Store.Complete] runs read, merge, satisfaction check and DEL-or-SET as a
// single Lua script. Two requests completing the last stage of different
// flows for one session serialize on the script: the first deletes the
// session and reports it satisfied, the second observes "not found".
//
// # What this package must NOT do
//
//   - Import hsAuth or stage (no upward imports).
//   - Verify stage proofs; callers only invoke Complete after a verifier
//     accepted the proof.
package interactive
