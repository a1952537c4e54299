// Package annil implements the audio distribution server: signed-token
// authorization over the provider layer, album-list revalidation, cover and
// audio streaming with range support, optional transcoding, and
// administrative reload.
package annil

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ProjectAnni/anni-go/internal/track"
)

var (
	// ErrUnauthorized marks a missing or unverifiable token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden marks a valid token whose ACL denies the request.
	ErrForbidden = errors.New("forbidden")
)

const (
	claimTypeUser  = "user"
	claimTypeShare = "share"
)

// ShareKey is the share-signing secret embedded in a user token, letting
// its holder mint share tokens without another round-trip to the server.
type ShareKey struct {
	KeyID  string `json:"key_id"`
	Secret string `json:"secret"`
}

// Claims is the payload of every annil token. Type selects which half is
// meaningful: a user token carries UserID (and optionally a share key); a
// share token carries the username it was minted by and the exact audio
// triples it grants.
type Claims struct {
	jwt.RegisteredClaims

	Type string `json:"type"`

	// User token fields.
	UserID string    `json:"user_id,omitempty"`
	Share  *ShareKey `json:"share,omitempty"`

	// Share token fields. Audios maps album id -> disc id (decimal
	// string) -> allowed track ids.
	Username string                       `json:"username,omitempty"`
	Audios   map[string]map[string][]uint8 `json:"audios,omitempty"`
}

// IsUser reports whether this is a full-access user token.
func (c *Claims) IsUser() bool {
	return c.Type == claimTypeUser
}

// AllowShare reports whether the token may mint share tokens.
func (c *Claims) AllowShare() bool {
	return c.IsUser() && c.Share != nil
}

// CanAccess reports whether the token authorizes the given triple. User
// tokens cover the whole provider set; share tokens cover exactly the
// triples they enumerate.
func (c *Claims) CanAccess(id track.Identifier) bool {
	if c.IsUser() {
		return true
	}
	discs, ok := c.Audios[id.AlbumID.String()]
	if !ok {
		return false
	}
	tracks, ok := discs[strconv.Itoa(int(id.DiscID))]
	if !ok {
		return false
	}
	for _, t := range tracks {
		if t == id.TrackID {
			return true
		}
	}
	return false
}

// Keys holds the immutable signing material, established once at boot.
type Keys struct {
	SignKey    []byte
	ShareKey   []byte
	ShareKeyID string
	AdminToken string
}

// SignUser mints a user token. When withShare is set the share-signing key
// is embedded so the holder can create share tokens offline.
func (k *Keys) SignUser(userID string, withShare bool, issuedAt int64) (string, error) {
	claims := &Claims{
		Type:   claimTypeUser,
		UserID: userID,
	}
	claims.IssuedAt = jwt.NewNumericDate(unixTime(issuedAt))
	if withShare {
		claims.Share = &ShareKey{KeyID: k.ShareKeyID, Secret: string(k.ShareKey)}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.SignKey)
}

// SignShare mints a share token from an audio ACL. expireHours of zero
// means the token never expires.
func (k *Keys) SignShare(username string, audios map[string]map[string][]uint8, issuedAt int64, expireHours uint64) (string, error) {
	claims := &Claims{
		Type:     claimTypeShare,
		Username: username,
		Audios:   audios,
	}
	claims.IssuedAt = jwt.NewNumericDate(unixTime(issuedAt))
	if expireHours > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(unixTime(issuedAt + int64(expireHours)*3600))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.ShareKey)
}

// Verify parses and validates a token. User tokens verify against the sign
// key, share tokens against the share key; the claim type routes the
// lookup.
func (k *Keys) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		c, ok := t.Claims.(*Claims)
		if !ok {
			return nil, errors.New("unexpected claims type")
		}
		switch c.Type {
		case claimTypeUser:
			return k.SignKey, nil
		case claimTypeShare:
			return k.ShareKey, nil
		default:
			return nil, fmt.Errorf("unknown claim type %q", c.Type)
		}
	})
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims, nil
}

// tokenFromRequest pulls the raw token from the Authorization header (with
// or without a Bearer prefix) or the auth query parameter.
func tokenFromRequest(r *http.Request) string {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		return strings.TrimPrefix(hdr, "Bearer ")
	}
	return r.URL.Query().Get("auth")
}
