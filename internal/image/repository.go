package image

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when an image does not exist.
var ErrNotFound = errors.New("image not found")

// Repository stores image records keyed by id.
//
// Put is an unconditional upsert: concurrent writers to the same id race and the
// last write wins.
type Repository interface {
	// Get returns ErrNotFound when id is unknown.
	Get(ctx context.Context, id string) (*Image, error)
	Put(ctx context.Context, img *Image) error
	// Delete removes the record and returns what was stored, or ErrNotFound.
	Delete(ctx context.Context, id string) (*Image, error)
	// Scan calls fn for every stored record; a non-nil error from fn stops the walk.
	Scan(ctx context.Context, fn func(*Image) error) error
}

const keyPrefix = "image:"

// Hash field names, shared with records written by earlier deployments.
const (
	fieldID     = "id"
	fieldURL    = "url"
	fieldUserID = "userId"
)

// RedisRepository keeps each image as a hash at image:<id>.
type RedisRepository struct {
	client redis.UniversalClient
}

// NewRedisRepository creates a Repository on top of client.
func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

func redisKey(id string) string {
	return keyPrefix + id
}

func fromHash(vals map[string]string) *Image {
	if len(vals) == 0 {
		return nil
	}
	return &Image{ID: vals[fieldID], URL: vals[fieldURL], UserID: vals[fieldUserID]}
}

// Get fetches an image by id.
func (r *RedisRepository) Get(ctx context.Context, id string) (*Image, error) {
	vals, err := r.client.HGetAll(ctx, redisKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get image %q: %w", id, err)
	}
	img := fromHash(vals)
	if img == nil {
		return nil, ErrNotFound
	}
	return img, nil
}

// Put writes every field of img.
func (r *RedisRepository) Put(ctx context.Context, img *Image) error {
	if img.ID == "" {
		return errors.New("put image: id required")
	}
	err := r.client.HSet(ctx, redisKey(img.ID),
		fieldID, img.ID,
		fieldURL, img.URL,
		fieldUserID, img.UserID,
	).Err()
	if err != nil {
		return fmt.Errorf("put image %q: %w", img.ID, err)
	}
	return nil
}

// Delete reads and removes the hash in one MULTI/EXEC.
func (r *RedisRepository) Delete(ctx context.Context, id string) (*Image, error) {
	key := redisKey(id)

	var get *redis.MapStringStringCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		get = p.HGetAll(ctx, key)
		p.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete image %q: %w", id, err)
	}

	img := fromHash(get.Val())
	if img == nil {
		return nil, ErrNotFound
	}
	return img, nil
}

// Scan walks every image:* key. Records deleted mid-walk and keys that are not
// hashes are skipped.
func (r *RedisRepository) Scan(ctx context.Context, fn func(*Image) error) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		vals, err := r.client.HGetAll(ctx, iter.Val()).Result()
		if isWrongType(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("scan images: %w", err)
		}
		img := fromHash(vals)
		if img == nil {
			continue
		}
		if err := fn(img); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan images: %w", err)
	}
	return nil
}

// isWrongType reports a redis WRONGTYPE reply, e.g. HGETALL on a string key.
func isWrongType(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr) && strings.HasPrefix(rerr.Error(), "WRONGTYPE")
}
