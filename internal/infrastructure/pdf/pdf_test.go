package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7 ...")))
	assert.False(t, IsPDF([]byte("plain text document")))
	assert.False(t, IsPDF(nil))
}

func TestText_EmptyDocument(t *testing.T) {
	e := NewExtractor(nil)

	_, err := e.Text(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentEmpty))
}

func TestText_UnreadableDocument(t *testing.T) {
	e := NewExtractor(nil)

	_, err := e.Text([]byte("%PDF-1.7 but not actually a valid pdf body"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentUnreadable))
}
