package fileerr

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapClassifies(t *testing.T) {
	_, err := os.Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	wrapped := Wrap("missing", err)
	var fe *Error
	require.ErrorAs(t, wrapped, &fe)
	assert.Equal(t, NotFound, fe.Kind)
	assert.Equal(t, "missing", fe.Path)

	// The original error stays reachable through the chain.
	assert.True(t, errors.Is(wrapped, os.ErrNotExist))
	assert.True(t, IsKind(wrapped, NotFound))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap("whatever", nil))
}

func TestKindOfUnknown(t *testing.T) {
	assert.Equal(t, Other, KindOf(errors.New("some failure")))
	assert.False(t, IsKind(errors.New("some failure"), NotFound))
}
