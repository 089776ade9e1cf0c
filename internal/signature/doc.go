// Package signature signs and verifies project archives with a detached
// ed25519 trailer: a 4-byte marker plus a 64-byte signature appended to the
// archive, and a raw 32-byte public key written to a sidecar .key file.
package signature
