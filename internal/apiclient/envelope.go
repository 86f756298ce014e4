package apiclient

import (
	"bytes"
	"encoding/json"
)

// DecodeData unmarshals a backend payload into out. Most endpoints wrap
// their result as {"data": ...}; some return it bare. Both are accepted.
func DecodeData(raw []byte, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || out == nil {
		return nil
	}
	if raw[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
			return json.Unmarshal(env.Data, out)
		}
	}
	return json.Unmarshal(raw, out)
}
