package category

import "github.com/cespare/xxhash/v2"

var icons = []string{
	"folder", "clipboard", "file-text", "bar-chart", "calendar",
	"users", "map-pin", "briefcase", "layers", "trending-up",
}

var colors = []string{
	"#2563eb", "#16a34a", "#db2777", "#ea580c", "#7c3aed",
	"#0891b2", "#ca8a04", "#dc2626", "#4f46e5", "#059669",
}

// Appearance returns the icon and color for a title. The same title always
// maps to the same pair.
func Appearance(title string) (icon, color string) {
	h := xxhash.Sum64String(title)
	return icons[h%uint64(len(icons))], colors[(h>>32)%uint64(len(colors))]
}
