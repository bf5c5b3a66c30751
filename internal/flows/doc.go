// Package flows holds the orchestration of every Engine operation as plain
// functions over typed dependency structs.
//
// Flows coordinate the credential codec, the renewal vault, the account store
// and the password verifier. They own none of these; the Engine builds the
// dependency structs once and delegates. Flows return classified failures and
// the Engine maps them to its exported sentinels.
//
// Flows must not import the root package and must not perform I/O except
// through their dependencies.
package flows
