package lifecycle

import (
	"encoding/json"

	"tablebook/src/types"
)

func encodePayload(v any) (types.JSONB, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var p types.JSONB
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func decodePayload(p types.JSONB, v any) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
