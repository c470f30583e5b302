package codec_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/canopy/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipart_RoundTrip(t *testing.T) {
	args := []any{
		"plain",
		map[string]any{"n": 1.5},
		[]byte{0x1, 0x2},
		strings.NewReader("stream"),
	}

	body, contentType, err := codec.MultipartEncoder{}.Encode(args)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(contentType, "multipart/form-data"))

	req := httptest.NewRequest("POST", "/RSC/F/lib/fn.txt", body)
	req.Header.Set("Content-Type", contentType)

	got, err := codec.DecodeArgs(req)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "plain", got[0])
	assert.Equal(t, map[string]any{"n": 1.5}, got[1])
	assert.Equal(t, []byte{0x1, 0x2}, got[2])
	assert.Equal(t, []byte("stream"), got[3])
}

func TestDecodeArgs_RejectsNonMultipart(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	_, err := codec.DecodeArgs(req)
	assert.Error(t, err)
}

func TestMultipart_NoArgs(t *testing.T) {
	body, contentType, err := codec.MultipartEncoder{}.Encode(nil)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", contentType)
	got, err := codec.DecodeArgs(req)
	require.NoError(t, err)
	assert.Empty(t, got)
}
