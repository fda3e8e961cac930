// Package keyboardlayout maps key inputs to the key definitions a
// browser expects in dispatched key events.
package keyboardlayout

import "strings"

// KeyInput names a key either by its physical code ("KeyA", "Enter")
// or by the value it produces ("a", "A", "@").
type KeyInput string

// KeyDefinition describes one key of a layout.
type KeyDefinition struct {
	Code         string
	Key          string
	KeyCode      int64
	ShiftKey     string
	ShiftKeyCode int64
	Text         string
	Location     int64
}

// KeyboardLayout resolves key inputs for one locale.
type KeyboardLayout struct {
	// ValidKeys holds every input the layout can produce: codes, key
	// values, and shift-layer values.
	ValidKeys map[KeyInput]bool
	// Keys indexes definitions by physical code.
	Keys map[KeyInput]KeyDefinition

	byKey map[KeyInput]KeyDefinition
}

// KeyDefinition looks a key up by the value it produces ("a",
// "Enter").
func (l KeyboardLayout) KeyDefinition(key KeyInput) (KeyDefinition, bool) {
	def, ok := l.byKey[key]
	return def, ok
}

// ShiftKeyDefinition looks a key up by its shift-layer value ("A",
// "@"). It returns the zero definition when no key produces that
// value.
func (l KeyboardLayout) ShiftKeyDefinition(key KeyInput) KeyDefinition {
	for _, def := range l.Keys {
		if def.ShiftKey == string(key) {
			return def
		}
	}
	return KeyDefinition{}
}

var layouts = map[string]KeyboardLayout{
	"us": buildLayout(usKeys),
}

// Get returns the layout for the given locale, falling back to "us".
func Get(name string) KeyboardLayout {
	if l, ok := layouts[name]; ok {
		return l
	}
	return layouts["us"]
}

func buildLayout(defs []KeyDefinition) KeyboardLayout {
	l := KeyboardLayout{
		ValidKeys: make(map[KeyInput]bool, len(defs)*3),
		Keys:      make(map[KeyInput]KeyDefinition, len(defs)),
		byKey:     make(map[KeyInput]KeyDefinition, len(defs)),
	}
	for _, def := range defs {
		l.Keys[KeyInput(def.Code)] = def
		l.ValidKeys[KeyInput(def.Code)] = true
		if def.Key != "" {
			l.ValidKeys[KeyInput(def.Key)] = true
			if _, ok := l.byKey[KeyInput(def.Key)]; !ok {
				l.byKey[KeyInput(def.Key)] = def
			}
		}
		if def.ShiftKey != "" {
			l.ValidKeys[KeyInput(def.ShiftKey)] = true
		}
	}
	return l
}

var usKeys = append(usLettersAndDigits(), []KeyDefinition{
	{Code: "Enter", Key: "Enter", KeyCode: 13, Text: "\r"},
	{Code: "Tab", Key: "Tab", KeyCode: 9},
	{Code: "Space", Key: " ", KeyCode: 32},
	{Code: "Backspace", Key: "Backspace", KeyCode: 8},
	{Code: "Escape", Key: "Escape", KeyCode: 27},
	{Code: "Delete", Key: "Delete", KeyCode: 46},
	{Code: "Home", Key: "Home", KeyCode: 36},
	{Code: "End", Key: "End", KeyCode: 35},
	{Code: "PageUp", Key: "PageUp", KeyCode: 33},
	{Code: "PageDown", Key: "PageDown", KeyCode: 34},
	{Code: "ArrowLeft", Key: "ArrowLeft", KeyCode: 37},
	{Code: "ArrowUp", Key: "ArrowUp", KeyCode: 38},
	{Code: "ArrowRight", Key: "ArrowRight", KeyCode: 39},
	{Code: "ArrowDown", Key: "ArrowDown", KeyCode: 40},
	{Code: "ShiftLeft", Key: "Shift", KeyCode: 16, Location: 1},
	{Code: "ShiftRight", Key: "Shift", KeyCode: 16, Location: 2},
	{Code: "ControlLeft", Key: "Control", KeyCode: 17, Location: 1},
	{Code: "ControlRight", Key: "Control", KeyCode: 17, Location: 2},
	{Code: "AltLeft", Key: "Alt", KeyCode: 18, Location: 1},
	{Code: "AltRight", Key: "Alt", KeyCode: 18, Location: 2},
	{Code: "MetaLeft", Key: "Meta", KeyCode: 91, Location: 1},
	{Code: "MetaRight", Key: "Meta", KeyCode: 92, Location: 2},
	{Code: "Minus", Key: "-", KeyCode: 189, ShiftKey: "_"},
	{Code: "Equal", Key: "=", KeyCode: 187, ShiftKey: "+"},
	{Code: "Comma", Key: ",", KeyCode: 188, ShiftKey: "<"},
	{Code: "Period", Key: ".", KeyCode: 190, ShiftKey: ">"},
	{Code: "Slash", Key: "/", KeyCode: 191, ShiftKey: "?"},
	{Code: "Semicolon", Key: ";", KeyCode: 186, ShiftKey: ":"},
	{Code: "Quote", Key: "'", KeyCode: 222, ShiftKey: "\""},
	{Code: "Backquote", Key: "`", KeyCode: 192, ShiftKey: "~"},
	{Code: "BracketLeft", Key: "[", KeyCode: 219, ShiftKey: "{"},
	{Code: "BracketRight", Key: "]", KeyCode: 221, ShiftKey: "}"},
	{Code: "Backslash", Key: "\\", KeyCode: 220, ShiftKey: "|"},
}...)

func usLettersAndDigits() []KeyDefinition {
	defs := make([]KeyDefinition, 0, 36)
	for c := 'a'; c <= 'z'; c++ {
		lower := string(c)
		upper := strings.ToUpper(lower)
		defs = append(defs, KeyDefinition{
			Code:     "Key" + upper,
			Key:      lower,
			KeyCode:  int64(upper[0]),
			ShiftKey: upper,
		})
	}
	const shifted = ")!@#$%^&*("
	for d := '0'; d <= '9'; d++ {
		defs = append(defs, KeyDefinition{
			Code:     "Digit" + string(d),
			Key:      string(d),
			KeyCode:  int64(d),
			ShiftKey: string(shifted[d-'0']),
		})
	}
	return defs
}
