package fetch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key is a canonical dependency key. Two keys built from structurally equal
// values compare equal regardless of pointer identity, so re-applying an
// unchanged filter state never triggers a spurious refetch.
type Key string

// KeyOf canonicalizes parts into a Key via deterministic JSON encoding.
// encoding/json sorts map keys, so maps with equal contents produce equal
// keys. Values that cannot be marshaled (funcs, channels) fall back to their
// Go-syntax representation; callers should stick to plain value types.
func KeyOf(parts ...any) Key {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('|')
		}
		data, err := json.Marshal(p)
		if err != nil {
			fmt.Fprintf(&b, "%#v", p)
			continue
		}
		b.Write(data)
	}
	return Key(b.String())
}
