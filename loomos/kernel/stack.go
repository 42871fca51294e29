package kernel

import "runtime/debug"

// captureStack is called from a deferred recover, so the trace still holds
// the frames of the panicking thread.
func captureStack() []byte {
	return debug.Stack()
}
