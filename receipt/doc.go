// Package receipt mints and verifies signed proof that a phone number was
// verified. A receipt is a short-lived JWT (EdDSA or HS256) carrying the
// number, country code, verifying session ID and verification time.
package receipt
