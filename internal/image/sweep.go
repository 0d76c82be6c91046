package image

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pixstore/service/internal/storage"
)

// DefaultSweepGrace keeps blobs of uploads that may still be in flight.
const DefaultSweepGrace = time.Hour

// SweepOptions controls a Sweep run.
type SweepOptions struct {
	// Grace skips blobs modified more recently than this.
	Grace  time.Duration
	DryRun bool
	Now    func() time.Time
}

// SweepReport summarises a Sweep run.
type SweepReport struct {
	Scanned    int      `json:"scanned"`
	Referenced int      `json:"referenced"`
	Recent     int      `json:"recent"`
	Orphans    int      `json:"orphans"`
	Deleted    int      `json:"deleted"`
	Keys       []string `json:"keys"`
}

// Sweeper removes blobs that no record references.
type Sweeper struct {
	repo  Repository
	blobs storage.Storage
	log   logrus.FieldLogger
}

// NewSweeper creates a Sweeper.
func NewSweeper(repo Repository, blobs storage.Storage, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{repo: repo, blobs: blobs, log: log}
}

// Run collects every key referenced by a record, then deletes each older unreferenced blob.
// Records are read before blobs are listed, so a blob written after the record scan is
// protected only by the grace period.
func (s *Sweeper) Run(ctx context.Context, opts SweepOptions) (*SweepReport, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cutoff := opts.Now().Add(-opts.Grace)

	referenced := make(map[string]struct{})
	err := s.repo.Scan(ctx, func(img *Image) error {
		key, err := storage.KeyFromURL(img.URL)
		if err != nil {
			s.log.WithError(err).WithField("image_id", img.ID).Warn("sweep: record has no blob key")
			return nil
		}
		referenced[key] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}

	report := &SweepReport{Keys: []string{}}
	err = s.blobs.List(ctx, func(obj storage.Object) error {
		report.Scanned++
		if _, ok := referenced[obj.Key]; ok {
			report.Referenced++
			return nil
		}
		if obj.LastModified.After(cutoff) {
			report.Recent++
			return nil
		}

		report.Orphans++
		report.Keys = append(report.Keys, obj.Key)
		log := s.log.WithFields(logrus.Fields{"key": obj.Key, "last_modified": obj.LastModified})
		if opts.DryRun {
			log.Info("sweep: orphan found")
			return nil
		}
		if err := s.blobs.Delete(ctx, obj.Key); err != nil {
			return fmt.Errorf("delete %q: %w", obj.Key, err)
		}
		report.Deleted++
		log.Info("sweep: orphan deleted")
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("sweep: %w", err)
	}
	return report, nil
}
