// Package portalauth is the authentication and authorization core of the job
// portal: it issues short-lived session credentials, rotates encrypted
// renewal credentials, and resolves what an account's role and status allow.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// portalauth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types ([LoginResult], [AuthResult], [Account]). Flow
// orchestration and audit dispatch live under internal/. Credential encoding
// lives in jwt, renewal encryption and storage in refresh, and the
// capability model in permission.
//
// # What this package must NOT do
//
//   - Store a plaintext renewal credential anywhere.
//   - Perform I/O in Authenticate. Standing is the only status read on the
//     request path, and the middleware decides when to call it.
//   - Import middleware or httpapi (no import cycles).
package portalauth
