// Package rate throttles failed password logins with Redis fixed-window
// counters.
//
// # Window semantics
//
// INCR + EXPIRE on the first hit. Key prefixes:
//   - hl:<user> counts failed logins per user id
//   - hli:<ip> counts failed logins per client IP
//
// A user is locked out once the counter reaches MaxLoginAttempts; the
// window expires after LoginCooldownDuration.
package rate
