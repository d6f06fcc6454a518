package cart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// SnapshotStore is the key-value store the cart persists itself to. Load
// returns nil data and no error when the key is absent.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrEmptySnapshot = errors.New("snapshot has no valid lines")

// EncodeSnapshot serializes lines as a JSON array.
func EncodeSnapshot(lines []Line) ([]byte, error) {
	if lines == nil {
		lines = []Line{}
	}
	return json.Marshal(lines)
}

// DecodeSnapshot parses a stored snapshot. Lines without a product id or with
// a non-positive quantity are dropped and duplicate product ids are merged
// into the first occurrence. A snapshot left with no lines is an error.
func DecodeSnapshot(data []byte) ([]Line, error) {
	var raw []Line
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	out := make([]Line, 0, len(raw))
	index := make(map[string]int, len(raw))
	for _, line := range raw {
		id := strings.TrimSpace(line.Product.ID)
		if id == "" || line.Quantity <= 0 || line.UnitPrice.IsNegative() {
			continue
		}
		if pos, ok := index[id]; ok {
			out[pos].Quantity += line.Quantity
			continue
		}
		line.Product.ID = id
		index[id] = len(out)
		out = append(out, line)
	}
	if len(out) == 0 {
		return nil, ErrEmptySnapshot
	}
	return out, nil
}
