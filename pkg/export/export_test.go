package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Daily shift generation",
		Headers: []string{"teacher", "shifts_created"},
		Rows: []map[string]string{
			{"teacher": "Ada", "shifts_created": "4"},
			{"teacher": "Grace, Jr.", "shifts_created": "2"},
		},
	}
}

func TestCSVRendererQuotesValues(t *testing.T) {
	out, err := NewCSVRenderer().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "teacher,shifts_created\nAda,4\n\"Grace, Jr.\",2\n", string(out))
}

func TestPDFRendererProducesDocument(t *testing.T) {
	out, err := NewPDFRenderer().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestForFormat(t *testing.T) {
	r, err := ForFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", r.ContentType())

	_, err = ForFormat("xlsx")
	assert.Error(t, err)

	_, err = NewCSVRenderer().Render(Dataset{})
	assert.Error(t, err)
}
