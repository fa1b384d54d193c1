// Package security derives a read-only posture report from engine
// configuration: which stages and flows are live, password cost, throttling
// and a list of human-readable warnings for risky settings.
//
// # What this package must NOT do
//
//   - Import hsAuth or perform I/O.
package security
