// Package limiters provides Redis-backed throttles for code issuance.
//
// # Limiters
//
//   - [IssueLimiter] — fixed-window count of codes issued per phone number, with an
//     optional per-IP counter.
//
// Keys are namespaced "eis:<tenant>:<phone>" and "eisip:<tenant>:<ip>". An empty
// tenant maps to "0". All methods are nil-safe.
//
// # What this package must NOT do
//
//   - Import goEnroll or any sibling internal package.
//   - Decide what happens when a limit is hit: the Enrollment maps errors to its own.
package limiters
