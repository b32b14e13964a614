package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	maxCollectionName = 64
	hashSuffixLen     = 9 // "_" + 8 hex chars
	defaultCollection = "ticketd_knowledge"
)

// CollectionName normalizes name to ^[a-z0-9_]{1,64}$, the form Qdrant and
// chromem accept. Overlong names are cut and suffixed with a short hash so
// distinct inputs stay distinct.
//
//	"Support KB (EN)" -> "support_kb_en"
//	"" or "!!!"       -> "ticketd_knowledge"
func CollectionName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	out = strings.Trim(out, "_")
	if out == "" {
		return defaultCollection
	}

	if len(out) > maxCollectionName {
		sum := sha256.Sum256([]byte(out))
		out = strings.TrimRight(out[:maxCollectionName-hashSuffixLen], "_") + "_" + hex.EncodeToString(sum[:])[:8]
	}
	return out
}
