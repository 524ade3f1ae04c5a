// Package disktest provides in-memory disk image fixtures for unit tests,
// modeled on the teacher's testing.LoadDiskImage helper: instead of a real
// temp file, tests back a session with a fixed-size byte slice wrapped as
// an io.ReadWriteSeeker via github.com/xaionaro-go/bytesextra.
package disktest

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"fat32disk/bootsector"
	"fat32disk/session"
)

// NewBlankImage returns a size-correct, all-zero image stream, suitable for
// exercising Format from a clean slate.
func NewBlankImage(t *testing.T) io.ReadWriteSeeker {
	t.Helper()

	data := make([]byte, bootsector.ImageBytes)
	return bytesextra.NewReadWriteSeeker(data)
}

// NewSession builds a *session.Session over a blank in-memory image.
func NewSession(t *testing.T) *session.Session {
	t.Helper()

	stream := NewBlankImage(t)
	return session.OpenStream("test.img", stream, nil)
}

// NewFormattedSession builds a session over a blank image and formats it,
// failing the test immediately if formatting fails.
func NewFormattedSession(t *testing.T) *session.Session {
	t.Helper()

	s := NewSession(t)
	require.NoError(t, s.Format(), "formatting fresh test image failed")
	return s
}
