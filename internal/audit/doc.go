// Package audit delivers security-relevant events to pluggable sinks.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, zap, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: audit record with timestamp, type, user, device, session, IP, metadata.
//
// The package does not decide which events to emit; the engine does.
package audit
