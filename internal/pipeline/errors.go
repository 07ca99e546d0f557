package pipeline

import (
	"errors"
	"strings"
)

// Flatten renders a wrapped error chain as one message per cause, outermost
// first, so the tracking table shows the failing stage before its root
// cause. Each level's message is stripped of the text its child already
// carries.
func Flatten(err error) string {
	var parts []string
	for err != nil {
		msg := err.Error()
		child := errors.Unwrap(err)
		if child != nil {
			if childMsg := child.Error(); strings.HasSuffix(msg, childMsg) {
				msg = strings.TrimSuffix(msg, childMsg)
				msg = strings.TrimSuffix(msg, ": ")
			}
		}
		if msg != "" {
			parts = append(parts, msg)
		}
		err = child
	}
	return strings.Join(parts, " caused by\n")
}
