package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataURI(t *testing.T) {
	img, err := ParseDataURI("data:image/jpeg;base64,/9j/4AAQ")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)
	assert.Equal(t, "/9j/4AAQ", img.Data)

	for _, bad := range []string{
		"",
		"image/png;base64,AAAA",
		"data:image/png,AAAA",
		"data:image/png;base64",
		"data:image/png;base64,",
		"data:image/png;base64,@@@",
		"data:application/pdf;base64,JVBERi0=",
	} {
		_, err := ParseDataURI(bad)
		assert.ErrorIs(t, err, ErrBadDataURI, bad)
	}
}

func TestEncodeDataURI_RoundTrip(t *testing.T) {
	uri := EncodeDataURI("image/webp", []byte("RIFF....WEBP"))
	img, err := ParseDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", img.MIMEType)
}
