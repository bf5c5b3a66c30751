// Package permission defines portal roles, account statuses, and the capability
// set derived from them.
//
// # Capability resolution
//
// [Resolve] is a pure function of (role, status, verified). Suspended and
// rejected accounts resolve to the empty [Mask64]; pending or unverified
// accounts resolve to [CapReadOwnStatus] only.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import portalauth, jwt, or refresh.
//   - Cache capability sets between calls.
package permission
