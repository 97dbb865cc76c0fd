package session

import (
	"encoding/json"
	"fmt"
)

func encodeData(d Data) ([]byte, error) {
	if d == nil {
		d = Data{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("session: failed to marshal: %w", err)
	}
	return b, nil
}

func decodeData(b []byte) (Data, error) {
	d := Data{}
	if len(b) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	if d == nil {
		d = Data{}
	}
	return d, nil
}
