package payload

import (
	"sort"

	"github.com/atimics/matrixbot-sub000/internal/world"
)

// truncationMarker flags snipped text so the model knows content is missing.
const truncationMarker = "…"

// Truncate cuts s to at most limit runes plus the truncation marker. Cutting
// happens on rune boundaries, never inside a multi-byte sequence.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncationMarker
}

// sortChannelsByActivity orders most recently active first. The input arrives
// id-sorted, so the stable sort leaves ties in ascending id order.
func sortChannelsByActivity(channels []world.Channel) {
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].LastActive.After(channels[j].LastActive)
	})
}
