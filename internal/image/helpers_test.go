package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pixstore/service/internal/logger"
	"github.com/pixstore/service/internal/metrics"
	"github.com/pixstore/service/internal/storage"
)

const (
	testPublicBase = "https://images.s3.amazonaws.com"
	testMaxSize    = 1024
)

// pngBytes is a 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type testPart struct {
	field         string
	filename      string
	contentType   string
	contentLength string
	data          []byte
}

func imagePart() testPart {
	return testPart{field: "image", filename: "test.png", contentType: "image/png", data: pngBytes}
}

func multipartBody(t *testing.T, parts ...testPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		disposition := fmt.Sprintf(`form-data; name="%s"`, p.field)
		if p.filename != "" {
			disposition += fmt.Sprintf(`; filename="%s"`, p.filename)
		}
		h.Set("Content-Disposition", disposition)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		if p.contentLength != "" {
			h.Set("Content-Length", p.contentLength)
		}
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func boundaryOf(t *testing.T, contentType string) string {
	t.Helper()
	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	return params["boundary"]
}

func readerFor(t *testing.T, body io.Reader, contentType string) *multipart.Reader {
	t.Helper()
	return multipart.NewReader(body, boundaryOf(t, contentType))
}

func newMultipart(t *testing.T, parts ...testPart) *multipart.Reader {
	t.Helper()
	body, ct := multipartBody(t, parts...)
	return readerFor(t, body, ct)
}

// faultyStorage fails Put or Delete on demand.
type faultyStorage struct {
	*storage.Memory
	putErr    error
	deleteErr error
}

func (f *faultyStorage) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) (string, error) {
	if f.putErr != nil {
		_, _ = io.Copy(io.Discard, r)
		return "", f.putErr
	}
	return f.Memory.Put(ctx, key, r, size, ct)
}

func (f *faultyStorage) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Memory.Delete(ctx, key)
}

// faultyRepo fails Put on demand.
type faultyRepo struct {
	Repository
	putErr error
}

func (f *faultyRepo) Put(ctx context.Context, img *Image) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Repository.Put(ctx, img)
}

var errBackend = errors.New("backend unavailable")

type fixture struct {
	svc     *Service
	repo    *faultyRepo
	blobs   *faultyStorage
	metrics *metrics.Metrics
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &faultyRepo{Repository: NewRedisRepository(client)}
	blobs := &faultyStorage{Memory: storage.NewMemory(testPublicBase)}
	m := metrics.New()
	log := logger.Discard()

	ingest := NewIngestor(blobs, testMaxSize, log, m)
	return &fixture{
		svc:     NewService(repo, blobs, ingest, log, m),
		repo:    repo,
		blobs:   blobs,
		metrics: m,
		redis:   mr,
	}
}

// seed stores a record and its blob, as a successful create would.
func (f *fixture) seed(t *testing.T, id, key, userID string) *Image {
	t.Helper()
	ctx := context.Background()
	url, err := f.blobs.Memory.Put(ctx, key, bytes.NewReader(pngBytes), int64(len(pngBytes)), "image/png")
	require.NoError(t, err)
	img := &Image{ID: id, URL: url, UserID: userID}
	require.NoError(t, f.repo.Repository.Put(ctx, img))
	return img
}
