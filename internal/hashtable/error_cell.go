package hashtable

import (
	"sync/atomic"

	jherrors "github.com/paveg/joinhash/internal/errors"
)

// ErrorCell is the shared status word of one build. Any work item may store a
// code; the last store wins and the cell is never cleared during a build.
type ErrorCell struct {
	code atomic.Int32
}

// Store records a non-zero build code. Zero is ignored.
func (c *ErrorCell) Store(code int) {
	if code != jherrors.CodeOK {
		c.code.Store(int32(code)) //nolint:gosec // build codes are small negatives
	}
}

// Load returns the recorded code, 0 when the build succeeded.
func (c *ErrorCell) Load() int {
	return int(c.code.Load())
}

// Reset clears the cell for reuse by another build.
func (c *ErrorCell) Reset() {
	c.code.Store(jherrors.CodeOK)
}

// Err converts the recorded code into a build error for op.
func (c *ErrorCell) Err(op string) error {
	return jherrors.FromCode(op, c.Load())
}
