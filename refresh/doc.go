// Package refresh stores renewal credentials encrypted at rest and rotates
// them with replay detection.
//
// # Ciphertext format
//
// hex(iv):hex(tag):hex(ciphertext), AES-256-GCM with a random 12-byte IV per
// call. The client holds the same ciphertext in its renewal cookie; the
// plaintext renewal credential never reaches durable storage.
//
// # Rotation
//
// [Repository.Rotate] is one atomic compare-and-swap per backend: a Lua
// script for Redis, a single UPDATE ... RETURNING / INSERT statement for
// Postgres. Presenting a ciphertext that was already rotated or revoked
// yields [ErrConflict].
//
// # What this package must NOT do
//
//   - Verify credential signatures (that is the jwt package).
//   - Decide account status or issue session credentials.
//   - Fall back to storing plaintext when the key is unavailable.
package refresh
