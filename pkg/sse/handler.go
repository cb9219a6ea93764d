package sse

import (
	"errors"
	"fmt"
)

// Fanout returns a Handler that passes every event to each handler in
// order. A failing or panicking handler does not keep the others from
// seeing the event; their errors are joined.
func Fanout(handlers ...Handler) Handler {
	return func(eventType string, payload Payload) error {
		var errs []error
		for _, h := range handlers {
			if h == nil {
				continue
			}
			if err := callSafely(h, eventType, payload); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

func callSafely(h Handler, eventType string, payload Payload) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(eventType, payload)
}
