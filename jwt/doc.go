// Package jwt issues and verifies the signed credentials used by portalauth:
// short-lived session credentials carrying role attributes, and the
// independently keyed renewal credentials whose ciphertext the refresh
// package persists.
//
// [Manager.Verify] is side-effect free and safe on attacker-controlled input;
// every failure wraps [ErrInvalid].
package jwt
