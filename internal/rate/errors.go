package rate

import "errors"

// ErrRedisUnavailable wraps Redis failures. Admission middleware fails closed
// on it.
var ErrRedisUnavailable = errors.New("redis unavailable")
