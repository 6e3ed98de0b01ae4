package input

import (
	"strings"
	"unicode/utf8"
)

// keyMap translates the human-readable key vocabulary to sink key names.
var keyMap = map[string]string{
	"Enter":       "enter",
	"Tab":         "tab",
	"Backspace":   "backspace",
	"Delete":      "delete",
	"Escape":      "escape",
	"Esc":         "escape",
	"Insert":      "insert",
	"Home":        "home",
	"End":         "end",
	"PageUp":      "pageup",
	"PageDown":    "pagedown",
	"ArrowUp":     "up",
	"ArrowDown":   "down",
	"ArrowLeft":   "left",
	"ArrowRight":  "right",
	"CapsLock":    "capslock",
	"Shift":       "shift",
	"Control":     "control",
	"Alt":         "alt",
	"Meta":        "command",
	"PrintScreen": "printscreen",
	"Spacebar":    "space",
	"F1":          "f1",
	"F2":          "f2",
	"F3":          "f3",
	"F4":          "f4",
	"F5":          "f5",
	"F6":          "f6",
	"F7":          "f7",
	"F8":          "f8",
	"F9":          "f9",
	"F10":         "f10",
	"F11":         "f11",
	"F12":         "f12",
}

// MapKey returns the sink key name and whether key was in the table.
// Unmapped names are lower-cased.
func MapKey(key string) (string, bool) {
	if mapped, ok := keyMap[key]; ok {
		return mapped, true
	}
	return strings.ToLower(key), false
}

func isSingleChar(key string) bool {
	return utf8.RuneCountInString(key) == 1
}
