package talentchain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// CanonicalJSON serializes v with object keys sorted lexicographically at
// every nesting level. Two semantically identical values always produce the
// same byte sequence, which is what makes the content hash usable for
// duplicate detection.
func CanonicalJSON(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, normalized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalize round-trips v through encoding/json so that structs, numbers and
// time values all collapse into the generic map/slice/string/float64 shape.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(raw)
		return nil
	}
}

// CanonicalForm flattens the metadata into the map that gets hashed. Extra
// attributes are merged first so the core fields can never be shadowed by a
// colliding extra key.
func (m CertificateMetadata) CanonicalForm() map[string]any {
	form := make(map[string]any, len(m.Extra)+5)
	for k, v := range m.Extra {
		form[k] = v
	}
	form["title"] = m.Title
	form["type"] = string(m.Type)
	form["issuerDid"] = m.IssuerDID
	form["holderDid"] = m.HolderDID
	form["issuedAt"] = m.IssuedAt.UTC().Format(time.RFC3339)
	return form
}

// Hash returns the hex encoded SHA-256 digest over the canonical form.
func (m CertificateMetadata) Hash() (string, error) {
	canonical, err := CanonicalJSON(m.CanonicalForm())
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize metadata: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
