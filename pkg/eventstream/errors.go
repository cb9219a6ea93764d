package eventstream

import "errors"

// ErrNilRunEvent indicates a nil run event was provided to a publisher.
var ErrNilRunEvent = errors.New("nil run event")
