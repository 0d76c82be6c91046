package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pixstore/service/internal/metrics"
	"github.com/pixstore/service/internal/storage"
)

// Upload rejections. All of them are client errors.
var (
	ErrNotMultipart    = errors.New("request is not multipart/form-data")
	ErrMalformedUpload = errors.New("malformed multipart body")
	ErrTooLarge        = errors.New("file is too large")
	ErrNotImage        = errors.New("file is not an image")
	ErrNoImage         = errors.New("no image file part")
	ErrMultipleImages  = errors.New("more than one image file part")
)

// IsUploadError reports whether err is one of the upload rejections.
func IsUploadError(err error) bool {
	for _, target := range []error{ErrNotMultipart, ErrMalformedUpload, ErrTooLarge, ErrNotImage, ErrNoImage, ErrMultipleImages} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Upload is a blob that has been written to the store.
type Upload struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

// Ingestor streams the image part of a multipart body into blob storage.
type Ingestor struct {
	blobs   storage.Storage
	maxSize int64
	newKey  func() string
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

// NewIngestor accepts image parts up to maxSize bytes.
func NewIngestor(blobs storage.Storage, maxSize int64, log logrus.FieldLogger, m *metrics.Metrics) *Ingestor {
	return &Ingestor{
		blobs:   blobs,
		maxSize: maxSize,
		newKey:  uuid.NewString,
		log:     log,
		metrics: m,
	}
}

// Ingest reads every part of mr. Parts without a filename are plain form fields and
// are skipped. The single file part must be an image/* no larger than the limit; it is
// streamed to the blob store under a fresh key. A second file part is rejected and the
// blob already written for the first one is removed.
func (in *Ingestor) Ingest(ctx context.Context, mr *multipart.Reader) (*Upload, error) {
	var up *Upload
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			in.discard(ctx, up)
			return nil, fmt.Errorf("%w: %v", ErrMalformedUpload, err)
		}

		if part.FileName() == "" {
			_, err := io.Copy(io.Discard, part)
			_ = part.Close()
			if err != nil {
				in.discard(ctx, up)
				return nil, fmt.Errorf("%w: %v", ErrMalformedUpload, err)
			}
			continue
		}

		if up != nil {
			_ = part.Close()
			in.discard(ctx, up)
			return nil, ErrMultipleImages
		}

		up, err = in.store(ctx, part)
		_ = part.Close()
		if err != nil {
			return nil, err
		}
	}

	if up == nil {
		return nil, ErrNoImage
	}
	return up, nil
}

func (in *Ingestor) store(ctx context.Context, part *multipart.Part) (*Upload, error) {
	declared := int64(-1)
	if cl := part.Header.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad part Content-Length %q", ErrMalformedUpload, cl)
		}
		declared = n
	}
	if declared > in.maxSize {
		return nil, ErrTooLarge
	}

	contentType := part.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotImage
	}

	key := in.newKey()
	body := &limitedBody{r: part, max: in.maxSize}

	in.log.WithFields(logrus.Fields{
		"key":           key,
		"declared_size": declared,
		"content_type":  contentType,
	}).Debug("uploading blob")

	url, err := in.blobs.Put(ctx, key, body, declared, contentType)
	switch {
	case body.exceeded:
		return nil, ErrTooLarge
	case body.readErr != nil:
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpload, body.readErr)
	case err != nil && declared >= 0 && body.n != declared:
		return nil, fmt.Errorf("%w: part shorter than its Content-Length", ErrMalformedUpload)
	case err != nil:
		return nil, fmt.Errorf("store blob: %w", err)
	}

	return &Upload{Key: key, URL: url, ContentType: contentType, Size: body.n}, nil
}

// discard removes a blob written earlier in a request that is now being rejected.
func (in *Ingestor) discard(ctx context.Context, up *Upload) {
	if up == nil {
		return
	}
	if err := in.blobs.Delete(context.WithoutCancel(ctx), up.Key); err != nil {
		in.metrics.Orphan(metrics.OrphanRejected)
		in.log.WithError(err).WithField("key", up.Key).Warn("could not remove rejected blob")
	}
}

// limitedBody fails the read that would take the stream past max bytes, and
// remembers whether the failure came from the limit or the client connection.
type limitedBody struct {
	r        io.Reader
	max      int64
	n        int64
	exceeded bool
	readErr  error
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if rest := b.max - b.n + 1; int64(len(p)) > rest {
		p = p[:rest]
	}
	n, err := b.r.Read(p)
	b.n += int64(n)
	if b.n > b.max {
		b.exceeded = true
		return 0, ErrTooLarge
	}
	if err != nil && err != io.EOF {
		b.readErr = err
	}
	return n, err
}
