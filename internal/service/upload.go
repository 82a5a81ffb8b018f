package service

import (
	"context"
	"fmt"
	"io"

	"shoe-market/internal/storage"

	"go.uber.org/zap"
)

const (
	listingImagePrefix = "shoes"
	galleryImagePrefix = "shoe_gallery"
	avatarPrefix       = "avatars"
)

// Upload is one file received with a request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// putAll stores every upload under prefix and returns the new keys in order.
// On failure the already stored objects are removed before returning.
func putAll(ctx context.Context, blobs storage.ObjectStorage, prefix string, uploads []Upload, logger *zap.Logger) ([]string, error) {
	keys := make([]string, 0, len(uploads))
	for _, u := range uploads {
		key := storage.NewKey(prefix, u.Filename)
		if err := blobs.Put(ctx, key, u.Body, u.Size, u.ContentType); err != nil {
			removeBlobs(context.WithoutCancel(ctx), blobs, keys, logger)
			return nil, fmt.Errorf("failed to store %s: %w", u.Filename, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
