package annil

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ProjectAnni/anni-go/internal/provider"
)

// ProtocolVersion is the wire protocol version reported by /info.
const ProtocolVersion = "0.4.1"

// NamedProvider pairs a provider with its configured backend name, for
// reload logging and diagnostics.
type NamedProvider struct {
	Name string
	provider.Provider
}

// Server is the annil application state. Signing keys are immutable after
// construction; the provider list, ETag and last-update stamp change only
// under the write lock during reload.
type Server struct {
	version string
	keys    Keys

	// metadataReload, when set, refreshes the metadata repo before the
	// providers during /admin/reload.
	metadataReload func(ctx context.Context) error

	// transcodeCodec selects the lossy pipeline: "aac" (default) or
	// "opus".
	transcodeCodec string

	mu         sync.RWMutex
	providers  []NamedProvider
	etag       string
	lastUpdate int64
}

// NewServer builds the application state and computes the initial ETag.
func NewServer(version string, keys Keys, providers []NamedProvider) *Server {
	s := &Server{
		version:    version,
		keys:       keys,
		providers:  providers,
		lastUpdate: time.Now().Unix(),
	}
	s.etag = computeETag(context.Background(), providers)
	return s
}

// SetTranscodeCodec selects the lossy transcode pipeline ("aac" or
// "opus").
func (s *Server) SetTranscodeCodec(codec string) {
	s.transcodeCodec = codec
}

// SetMetadataReload installs the metadata refresh hook run by
// /admin/reload before the providers.
func (s *Server) SetMetadataReload(fn func(ctx context.Context) error) {
	s.metadataReload = fn
}

// Keys exposes the signing material (for tests and token tooling).
func (s *Server) Keys() *Keys {
	return &s.keys
}

// snapshot returns the current provider list under the read lock.
func (s *Server) snapshot() []NamedProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providers
}

// ETag returns the current album-set ETag in quoted form.
func (s *Server) ETag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return `"` + s.etag + `"`
}

// reload refreshes metadata and every provider, then recomputes the ETag
// and bumps the last-update stamp. Every provider is attempted even when
// one fails.
func (s *Server) reload(ctx context.Context) {
	if s.metadataReload != nil {
		if err := s.metadataReload(ctx); err != nil {
			slog.Error("metadata reload failed", "err", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if err := p.Reload(ctx); err != nil {
			slog.Error("provider reload failed", "provider", p.Name, "err", err)
		}
	}
	s.etag = computeETag(ctx, s.providers)
	s.lastUpdate = time.Now().Unix()
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
