package annil

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func xorHex(ids ...uuid.UUID) string {
	var acc [16]byte
	for _, id := range ids {
		for i, b := range id {
			acc[i] ^= b
		}
	}
	return hex.EncodeToString(acc[:])
}

func namedStatic(name string, ids ...uuid.UUID) NamedProvider {
	albums := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		albums[id.String()] = struct{}{}
	}
	return NamedProvider{Name: name, Provider: &fakeAnnilProvider{albums: albums}}
}

func TestComputeETagEvolution(t *testing.T) {
	ctx := context.Background()
	a := uuid.New()
	b := uuid.New()

	before := computeETag(ctx, []NamedProvider{namedStatic("p", a)})
	after := computeETag(ctx, []NamedProvider{namedStatic("p", a, b)})

	// Adding album b flips exactly b's bits.
	assert.Equal(t, xorHex(a), before)
	assert.Equal(t, xorHex(a, b), after)
	assert.NotEqual(t, before, after)
}

func TestComputeETagAcrossProviders(t *testing.T) {
	ctx := context.Background()
	a := uuid.New()
	b := uuid.New()

	joined := computeETag(ctx, []NamedProvider{namedStatic("one", a), namedStatic("two", b)})
	assert.Equal(t, xorHex(a, b), joined)
}

func TestETagMatches(t *testing.T) {
	assert.True(t, etagMatches(`"abc123"`, `"abc123"`))
	assert.True(t, etagMatches(`W/"abc123"`, `"abc123"`))
	assert.True(t, etagMatches(`abc123`, `"abc123"`))
	assert.False(t, etagMatches(`"zzz"`, `"abc123"`))
}
