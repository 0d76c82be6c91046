package image

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixstore/service/internal/logger"
	"github.com/pixstore/service/internal/metrics"
	"github.com/pixstore/service/internal/storage"
)

func newTestIngestor(blobs storage.Storage) *Ingestor {
	in := NewIngestor(blobs, testMaxSize, logger.Discard(), metrics.New())
	n := 0
	in.newKey = func() string {
		n++
		return "key-" + strconv.Itoa(n)
	}
	return in
}

func TestIngest_StoresImage(t *testing.T) {
	blobs := storage.NewMemory(testPublicBase)
	in := newTestIngestor(blobs)

	up, err := in.Ingest(context.Background(), newMultipart(t,
		testPart{field: "title", data: []byte("holiday")},
		imagePart(),
	))
	require.NoError(t, err)

	assert.Equal(t, "key-1", up.Key)
	assert.Equal(t, testPublicBase+"/key-1", up.URL)
	assert.Equal(t, "image/png", up.ContentType)
	assert.Equal(t, int64(len(pngBytes)), up.Size)

	data, ct, ok := blobs.Get("key-1")
	require.True(t, ok)
	assert.Equal(t, pngBytes, data)
	assert.Equal(t, "image/png", ct)
}

func TestIngest_DeclaredLength(t *testing.T) {
	blobs := storage.NewMemory(testPublicBase)
	in := newTestIngestor(blobs)

	p := imagePart()
	p.contentLength = strconv.Itoa(len(pngBytes))
	_, err := in.Ingest(context.Background(), newMultipart(t, p))
	require.NoError(t, err)
	assert.Equal(t, 1, blobs.Len())
}

func TestIngest_Rejections(t *testing.T) {
	big := bytes.Repeat([]byte{0xff}, testMaxSize+1)

	tests := []struct {
		name  string
		parts []testPart
		want  error
	}{
		{
			name:  "non image content type",
			parts: []testPart{{field: "image", filename: "test.json", contentType: "application/json", data: []byte(`{}`)}},
			want:  ErrNotImage,
		},
		{
			name:  "missing content type",
			parts: []testPart{{field: "image", filename: "test.png", data: pngBytes}},
			want:  ErrNotImage,
		},
		{
			name:  "declared too large",
			parts: []testPart{{field: "image", filename: "a.png", contentType: "image/png", contentLength: strconv.Itoa(testMaxSize + 1), data: pngBytes}},
			want:  ErrTooLarge,
		},
		{
			name:  "streamed too large",
			parts: []testPart{{field: "image", filename: "a.png", contentType: "image/png", data: big}},
			want:  ErrTooLarge,
		},
		{
			name:  "bad declared length",
			parts: []testPart{{field: "image", filename: "a.png", contentType: "image/png", contentLength: "lots", data: pngBytes}},
			want:  ErrMalformedUpload,
		},
		{
			name:  "no file part",
			parts: []testPart{{field: "title", data: []byte("holiday")}},
			want:  ErrNoImage,
		},
		{
			name:  "empty form",
			parts: nil,
			want:  ErrNoImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := storage.NewMemory(testPublicBase)
			in := newTestIngestor(blobs)

			_, err := in.Ingest(context.Background(), newMultipart(t, tt.parts...))
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsUploadError(err))
			assert.Equal(t, 0, blobs.Len(), "rejected uploads leave nothing in the store")
		})
	}
}

func TestIngest_ExactlyMaxSizeAccepted(t *testing.T) {
	blobs := storage.NewMemory(testPublicBase)
	in := newTestIngestor(blobs)

	p := imagePart()
	p.data = bytes.Repeat([]byte{0x01}, testMaxSize)
	up, err := in.Ingest(context.Background(), newMultipart(t, p))
	require.NoError(t, err)
	assert.Equal(t, int64(testMaxSize), up.Size)
}

func TestIngest_MultipleImagesCompensates(t *testing.T) {
	blobs := storage.NewMemory(testPublicBase)
	in := newTestIngestor(blobs)

	_, err := in.Ingest(context.Background(), newMultipart(t, imagePart(), imagePart()))
	assert.ErrorIs(t, err, ErrMultipleImages)
	assert.Equal(t, 0, blobs.Len(), "the first blob is removed")
}

func TestIngest_MultipleImagesCompensationFailureIsCounted(t *testing.T) {
	blobs := &faultyStorage{Memory: storage.NewMemory(testPublicBase), deleteErr: errBackend}
	in := newTestIngestor(blobs)

	_, err := in.Ingest(context.Background(), newMultipart(t, imagePart(), imagePart()))
	assert.ErrorIs(t, err, ErrMultipleImages)
	assert.Equal(t, 1.0, testutil.ToFloat64(in.metrics.OrphanedBlobs.WithLabelValues(metrics.OrphanRejected)))
}

func TestIngest_TruncatedBody(t *testing.T) {
	blobs := storage.NewMemory(testPublicBase)
	in := newTestIngestor(blobs)

	body, ct := multipartBody(t, imagePart())
	// Cut inside the file data: the closing delimiter is "\r\n--" + boundary + "--\r\n".
	closing := len("\r\n--") + len(boundaryOf(t, ct)) + len("--\r\n")
	truncated := bytes.NewReader(body.Bytes()[:body.Len()-closing-20])

	_, err := in.Ingest(context.Background(), readerFor(t, truncated, ct))
	assert.ErrorIs(t, err, ErrMalformedUpload)
	assert.Equal(t, 0, blobs.Len())
}

func TestIngest_StoreFailureIsNotAnUploadError(t *testing.T) {
	blobs := &faultyStorage{Memory: storage.NewMemory(testPublicBase), putErr: errBackend}
	in := newTestIngestor(blobs)

	_, err := in.Ingest(context.Background(), newMultipart(t, imagePart()))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackend)
	assert.False(t, IsUploadError(err))
}

func TestLimitedBody(t *testing.T) {
	b := &limitedBody{r: strings.NewReader("abcdef"), max: 6}
	data, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))
	assert.False(t, b.exceeded)

	b = &limitedBody{r: strings.NewReader("abcdefg"), max: 6}
	_, err = io.ReadAll(b)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.True(t, b.exceeded)
}
