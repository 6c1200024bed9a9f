package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Claims is a verified token's decoded payload.
type Claims struct {
	Subject     string
	IssuedAt    int64
	ExpiresAt   int64
	ModifyTree  bool
	Permissions PermissionSet
}

// IsExpired reports whether the claims' expiry has passed as of now.
func (c Claims) IsExpired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.Unix() >= c.ExpiresAt
}

type rawClaims struct {
	Sub        string          `json:"sub"`
	Iat        int64           `json:"iat"`
	Exp        int64           `json:"exp"`
	ModifyTree bool            `json:"modifyTree"`
	KuksaVSS   json.RawMessage `json:"kuksa-vss,omitempty"`
}

func parseClaims(payload []byte) (Claims, error) {
	var rc rawClaims
	if err := json.Unmarshal(payload, &rc); err != nil {
		return Claims{}, fmt.Errorf("decode claims: %w", err)
	}

	claims := Claims{
		Subject:    rc.Sub,
		IssuedAt:   rc.Iat,
		ExpiresAt:  rc.Exp,
		ModifyTree: rc.ModifyTree,
	}

	if len(rc.KuksaVSS) == 0 {
		return claims, nil
	}

	perms, err := parsePermissionSet(rc.KuksaVSS)
	if err != nil {
		return Claims{}, fmt.Errorf("decode kuksa-vss permissions: %w", err)
	}
	claims.Permissions = perms
	return claims, nil
}

// parsePermissionSet decodes a kuksa-vss claim of the form
// {"Vehicle.Speed": "r", "Vehicle.*.Speed": "rw"} into an ordered
// PermissionSet, preserving declaration order for the glob tie-break rule
// in PermissionSet.bestMatch. Each value must be "r", "w", or "rw"; any
// other character is ignored.
func parsePermissionSet(raw json.RawMessage) (PermissionSet, error) {
	order, err := orderedObjectKeys(raw)
	if err != nil {
		return nil, err
	}

	var access map[string]string
	if err := json.Unmarshal(raw, &access); err != nil {
		return nil, err
	}

	ps := make(PermissionSet, 0, len(order))
	for _, pattern := range order {
		mode := access[pattern]
		ps = append(ps, Rule{
			Pattern: pattern,
			Read:    strings.Contains(mode, "r"),
			Write:   strings.Contains(mode, "w"),
		})
	}
	return ps, nil
}

// orderedObjectKeys returns a JSON object's top-level keys in document
// order; plain map decoding in encoding/json does not preserve it, and
// PermissionSet's glob tie-break rule depends on declaration order.
func orderedObjectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		keys = append(keys, key)
		if err := skipJSONValue(dec); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// skipJSONValue consumes exactly one JSON value from dec, whatever its shape.
func skipJSONValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
