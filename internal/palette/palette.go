package palette

import "strings"

// The fixed icon and colour palettes. Records are expected to stay inside
// them, but the store does not enforce membership: writes are validated at
// the form and HTTP boundaries, and anything that slipped past a stale
// client is normalized for display only.

var icons = []string{
	"pi pi-calendar",
	"pi pi-calendar-times",
	"pi pi-building",
	"pi pi-home",
	"pi pi-file-edit",
	"pi pi-envelope",
	"pi pi-at",
	"pi pi-phone",
	"pi pi-mobile",
	"pi pi-bell",
	"pi pi-bookmark",
	"pi pi-car",
	"pi pi-clock",
	"pi pi-times",
	"pi pi-check",
	"pi pi-euro",
	"pi pi-info",
	"pi pi-question",
	"pi pi-exclamation-triangle",
	"pi pi-gift",
	"pi pi-heart",
	"pi pi-list",
	"pi pi-shopping-cart",
	"pi pi-print",
}

// Colour tokens are hex values without a leading marker.
var colours = []string{
	"607D8B",
	"689F38",
	"0288D1",
	"FBC02D",
	"9C27B0",
	"D32F2F",
	"673AB7",
	"FF9800",
	"A31545",
}

func DefaultIcon() string   { return icons[0] }
func DefaultColour() string { return colours[0] }

// Icons returns the icon palette in display order.
func Icons() []string {
	out := make([]string, len(icons))
	copy(out, icons)
	return out
}

// Colours returns the colour palette in display order.
func Colours() []string {
	out := make([]string, len(colours))
	copy(out, colours)
	return out
}

func ValidIcon(icon string) bool {
	for _, v := range icons {
		if v == icon {
			return true
		}
	}
	return false
}

func ValidColour(colour string) bool {
	colour = strings.TrimSpace(colour)
	for _, v := range colours {
		if strings.EqualFold(v, colour) {
			return true
		}
	}
	return false
}

// NormalizeIcon maps an off-palette icon to the default for display. The
// stored value is left alone; only rendering goes through here.
func NormalizeIcon(icon string) string {
	if ValidIcon(icon) {
		return icon
	}
	return DefaultIcon()
}

// NormalizeColour maps an off-palette colour to the default for display.
func NormalizeColour(colour string) string {
	colour = strings.TrimSpace(colour)
	for _, v := range colours {
		if strings.EqualFold(v, colour) {
			return v
		}
	}
	return DefaultColour()
}
