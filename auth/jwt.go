package auth

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/c360/vssbroker/errors"
	"github.com/c360/vssbroker/pkg/cache"
)

// Verifier checks RS256-signed tokens against a KeyStore and caches
// successfully-verified claims, keyed by the SHA-256 digest of the raw
// token, so a hot connection re-sending the same token on every request
// does not re-run RSA verification each time.
type Verifier struct {
	keys  *KeyStore
	cache cache.Cache[Claims]
}

// NewVerifier builds a Verifier. cacheTTL <= 0 disables the claims cache.
// ctx governs the cache's background cleanup goroutine, if any.
func NewVerifier(ctx context.Context, keys *KeyStore, cacheTTL time.Duration) (*Verifier, error) {
	if cacheTTL <= 0 {
		return &Verifier{keys: keys}, nil
	}
	c, err := cache.NewTTL[Claims](ctx, cacheTTL, cacheTTL, cache.WithStatsInterval[Claims](0))
	if err != nil {
		return nil, err
	}
	return &Verifier{keys: keys, cache: c}, nil
}

type jwtHeader struct {
	Alg string `json:"alg"`
}

// Verify validates rawToken's RS256 signature against the current key and
// decodes its claims. It fails as InvalidToken for any malformed, mis-signed,
// or expired token.
func (v *Verifier) Verify(rawToken string) (Claims, error) {
	digest := sha256.Sum256([]byte(rawToken))
	cacheKey := base64.RawURLEncoding.EncodeToString(digest[:])

	if v.cache != nil {
		if claims, ok := v.cache.Get(cacheKey); ok {
			if claims.IsExpired(time.Now()) {
				_, _ = v.cache.Delete(cacheKey)
			} else {
				return claims, nil
			}
		}
	}

	parts := strings.Split(rawToken, ".")
	if len(parts) != 3 {
		return Claims{}, errors.InvalidToken("token is not a three-part JWT", nil)
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Claims{}, errors.InvalidToken("malformed token header", err)
	}
	var header jwtHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Claims{}, errors.InvalidToken("malformed token header", err)
	}
	if header.Alg != "RS256" {
		return Claims{}, errors.InvalidToken("unsupported signing algorithm: "+header.Alg, nil)
	}

	pub := v.keys.Current()
	if pub == nil {
		return Claims{}, errors.UpstreamUnavailable("no verification key installed", nil)
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Claims{}, errors.InvalidToken("malformed token signature", err)
	}
	hashed := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed[:], sig); err != nil {
		return Claims{}, errors.InvalidToken("signature verification failed", err)
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, errors.InvalidToken("malformed token payload", err)
	}
	claims, err := parseClaims(payloadJSON)
	if err != nil {
		return Claims{}, errors.InvalidToken("malformed token claims", err)
	}
	if claims.IsExpired(time.Now()) {
		return Claims{}, errors.InvalidToken("token has expired", nil)
	}

	if v.cache != nil {
		_, _ = v.cache.Set(cacheKey, claims)
	}
	return claims, nil
}
