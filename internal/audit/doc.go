// Package audit implements async event dispatching for enrollment transitions.
//
// # Components
//
//   - [Sink] — interface for event consumers (channel, JSON writer, zap, no-op, fan-out).
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event] — structured record with timestamp, type, enrollment, tenant, masked phone, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Enrollment does.
//
// # What this package must NOT do
//
//   - Carry verification codes or unmasked phone numbers.
//   - Import goEnroll or any sibling internal package.
package audit
