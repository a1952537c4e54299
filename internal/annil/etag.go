package annil

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// computeETag folds every album UUID across all providers into a single
// 128-bit XOR. Adding or removing an album flips exactly its own bits, so
// clients revalidate /albums with one cheap comparison.
func computeETag(ctx context.Context, providers []NamedProvider) string {
	var acc [16]byte
	for _, p := range providers {
		albums, err := p.Albums(ctx)
		if err != nil {
			slog.Error("failed to list albums for etag", "provider", p.Name, "err", err)
			continue
		}
		for album := range albums {
			id, err := uuid.Parse(album)
			if err != nil {
				slog.Error("failed to parse album uuid", "album", album)
				continue
			}
			for i, b := range id {
				acc[i] ^= b
			}
		}
	}
	return hex.EncodeToString(acc[:])
}

// etagMatches compares an If-None-Match header value against the current
// ETag, tolerating a weak-validator prefix and quoting.
func etagMatches(header, current string) bool {
	header = strings.TrimPrefix(header, "W/")
	header = strings.Trim(header, `"`)
	return header == strings.Trim(current, `"`)
}
