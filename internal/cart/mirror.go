package cart

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"storefront-client/internal/domain"
)

// mirrorVersion tags the local storage layout so a future CartLine change can
// be migrated instead of misread.
const mirrorVersion = 1

type mirror struct {
	Version int               `json:"version"`
	Items   []domain.CartLine `json:"items"`
}

func encodeMirror(items domain.Cart) ([]byte, error) {
	if items == nil {
		items = domain.Cart{}
	}
	return json.Marshal(mirror{Version: mirrorVersion, Items: items})
}

// decodeMirror also accepts the unversioned layout, a bare array of lines.
func decodeMirror(data []byte) (domain.Cart, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return domain.Cart{}, nil
	}
	if data[0] == '[' {
		var legacy []domain.CartLine
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("failed to decode cart mirror: %w", err)
		}
		return domain.Cart(legacy).Normalize(), nil
	}
	var m mirror
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode cart mirror: %w", err)
	}
	if m.Version > mirrorVersion {
		return nil, fmt.Errorf("cart mirror version %d is newer than supported version %d", m.Version, mirrorVersion)
	}
	return domain.Cart(m.Items).Normalize(), nil
}
