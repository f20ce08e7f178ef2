package metadata

import (
	"encoding/base64"
	"encoding/json"
)

// EncodeToken serializes a continuation key into an opaque, URL-safe token.
// A nil or empty key encodes to "".
func EncodeToken(key map[string]string) string {
	if len(key) == 0 {
		return ""
	}
	raw, err := json.Marshal(key)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeToken reverses EncodeToken. Anything that does not decode to a
// non-empty key yields nil, which callers treat as "start from the beginning".
func DecodeToken(token string) map[string]string {
	if token == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil
	}
	var key map[string]string
	if err := json.Unmarshal(raw, &key); err != nil || len(key) == 0 {
		return nil
	}
	return key
}
