// Package goEnroll drives a multi-step enrollment wizard (account type, phone
// verification, personal info, complete) and owns the lifecycle of the
// one-time code that proves phone ownership.
//
// An [Engine] is built once through [Builder.Build] and is safe to share. Each
// user gets an [Enrollment] from [Engine.NewEnrollment], which combines a
// [FormState], a [VerificationSession] and a [StepOrchestrator].
//
// # Architecture boundaries
//
// goEnroll is the public surface. It exposes [Engine], [Builder], [Config] and
// value types (SessionSnapshot, CheckResult, MetricsSnapshot, etc.). Phone
// validation, code generation, the Redis issuance limiter and audit dispatch
// live under internal/ and are never exported. Signed proof-of-verification
// tokens are produced by the receipt sub-package.
//
// # What this package must NOT do
//
//   - Return, log, audit or snapshot a plaintext code. Codes only leave a
//     session through [Delivery].
//   - Call collaborators (Delivery, PhoneRecorder, subscribers) while holding
//     a session lock.
//   - Transport codes. SMS, email and any persistence are the caller's concern.
//
// # Time
//
// Deadlines come from the Engine's clockwork.Clock. Every call applies elapsed
// deadlines before acting, so an expired code is refused even if its timer has
// not fired. Tests inject clockwork.NewFakeClock through [Builder.WithClock].
package goEnroll
