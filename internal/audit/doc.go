// Package audit relays login, refresh, logout and account-status events to a
// caller-supplied Sink off the request path.
//
// The Dispatcher only accepts the event types listed in this package. Replay
// detection, status changes and revocations are critical and are never
// dropped to make room.
package audit
