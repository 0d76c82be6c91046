package image

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pixstore/service/internal/metrics"
	"github.com/pixstore/service/internal/storage"
)

// Service coordinates the metadata repository and the blob store.
//
// The two stores share no transaction. Every operation orders its writes so that a
// stored record never points at a deleted blob; the price is that failures can leave
// a blob nobody references. Those orphans are logged and counted, and removed only by
// an explicit Sweep.
type Service struct {
	repo      Repository
	blobs     storage.Storage
	ingest    *Ingestor
	validator *Validator
	newID     func() string
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
}

// NewService creates a new image Service.
func NewService(repo Repository, blobs storage.Storage, ingest *Ingestor, log logrus.FieldLogger, m *metrics.Metrics) *Service {
	return &Service{
		repo:      repo,
		blobs:     blobs,
		ingest:    ingest,
		validator: NewValidator(),
		newID:     uuid.NewString,
		log:       log,
		metrics:   m,
	}
}

// Get returns an image by id.
func (s *Service) Get(ctx context.Context, id string) (*Image, error) {
	img, err := s.repo.Get(ctx, id)
	s.metrics.Operation("read", outcome(err))
	return img, err
}

// Create stores the uploaded image for userID under a new id.
func (s *Service) Create(ctx context.Context, userID string, mr *multipart.Reader) (*Image, error) {
	img, err := s.create(ctx, userID, mr)
	s.metrics.Operation("create", outcome(err))
	return img, err
}

func (s *Service) create(ctx context.Context, userID string, mr *multipart.Reader) (*Image, error) {
	img := &Image{ID: s.newID(), UserID: userID}
	log := s.log.WithFields(logrus.Fields{"image_id": img.ID, "op": "create"})

	up, err := s.ingest.Ingest(ctx, mr)
	if err != nil {
		return nil, err
	}
	img.URL = up.URL
	log = log.WithFields(logrus.Fields{"key": up.Key, "url": up.URL})
	log.Debug("blob stored")

	if err := s.validate(ctx, img, log); err != nil {
		return nil, err
	}

	if err := s.repo.Put(ctx, img); err != nil {
		s.orphan(log, metrics.OrphanMetadataFail)
		return nil, fmt.Errorf("create image: %w", err)
	}

	log.Info("image created")
	return img, nil
}

// Replace swaps the blob of an existing image. The owner never changes, whoever
// the caller is. The old blob is deleted only after the record points at the new one.
func (s *Service) Replace(ctx context.Context, id string, mr *multipart.Reader) (*Image, error) {
	img, err := s.replace(ctx, id, mr)
	s.metrics.Operation("replace", outcome(err))
	return img, err
}

func (s *Service) replace(ctx context.Context, id string, mr *multipart.Reader) (*Image, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldURL := existing.URL

	img := &Image{ID: existing.ID, UserID: existing.UserID}
	log := s.log.WithFields(logrus.Fields{"image_id": img.ID, "op": "replace"})

	up, err := s.ingest.Ingest(ctx, mr)
	if err != nil {
		return nil, err
	}
	img.URL = up.URL
	log = log.WithFields(logrus.Fields{"key": up.Key, "url": up.URL})
	log.Debug("blob stored")

	if err := s.validate(ctx, img, log); err != nil {
		return nil, err
	}

	if err := s.repo.Put(ctx, img); err != nil {
		s.orphan(log, metrics.OrphanMetadataFail)
		return nil, fmt.Errorf("replace image: %w", err)
	}

	if err := s.deleteBlob(ctx, oldURL); err != nil {
		s.orphan(log.WithField("old_url", oldURL), metrics.OrphanReplaceOld)
		return nil, fmt.Errorf("replace image: remove previous blob: %w", err)
	}

	log.WithField("old_url", oldURL).Info("image replaced")
	return img, nil
}

// Delete removes the record first and the blob second: once the record is gone the
// image no longer exists, so a failed blob delete leaves only an invisible orphan.
// That failure is still returned to the caller.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.delete(ctx, id)
	s.metrics.Operation("delete", outcome(err))
	return err
}

func (s *Service) delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	log := s.log.WithFields(logrus.Fields{"image_id": id, "op": "delete", "url": removed.URL})

	if err := s.deleteBlob(ctx, removed.URL); err != nil {
		s.orphan(log, metrics.OrphanDeleteBlob)
		return fmt.Errorf("delete image: remove blob: %w", err)
	}

	log.Info("image deleted")
	return nil
}

// validate runs before any metadata write. A rejected image leaves its freshly
// written blob behind.
func (s *Service) validate(ctx context.Context, img *Image, log logrus.FieldLogger) error {
	errs, err := s.validator.Validate(ctx, img)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		s.orphan(log, metrics.OrphanInvalid)
		return &ValidationError{Errors: errs}
	}
	return nil
}

// deleteBlob runs even if the client has gone away: the record no longer
// references the blob, so abandoning the delete only creates an orphan.
func (s *Service) deleteBlob(ctx context.Context, url string) error {
	key, err := storage.KeyFromURL(url)
	if err != nil {
		return err
	}
	return s.blobs.Delete(context.WithoutCancel(ctx), key)
}

func (s *Service) orphan(log logrus.FieldLogger, reason string) {
	s.metrics.Orphan(reason)
	log.WithField("reason", reason).Warn("blob orphaned")
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsUploadError(err):
		return "rejected"
	}
	if _, ok := IsValidationError(err); ok {
		return "invalid"
	}
	return "error"
}
