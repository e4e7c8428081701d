// Package internal contains helper utilities that are intentionally private to goEnroll,
// chiefly verification-code generation and digest comparison.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - limiters — Redis-backed issuance throttle per phone number
//   - phone — phone number and country code validation and formatting
//
// # What this package must NOT do
//
//   - Export types that appear in the public goEnroll API.
//   - Be imported by any package outside the goEnroll module.
package internal
