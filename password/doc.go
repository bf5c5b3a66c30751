// Package password hashes new passwords with Argon2id and verifies both
// Argon2id and legacy bcrypt hashes.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Verifier.Verify] reports an upgrade flag for bcrypt hashes and for Argon2id
// hashes produced with weaker parameters, so the caller can re-hash on the
// next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other portalauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
