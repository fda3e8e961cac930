package common

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"

	"github.com/marionet/marionet/keyboardlayout"
)

const (
	ModifierKeyAlt int64 = 1 << iota
	ModifierKeyControl
	ModifierKeyMeta
	ModifierKeyShift
)

// KeyboardOptions represents the options for the keyboard.
type KeyboardOptions struct {
	// Delay is the pause before each key action, in milliseconds.
	Delay int64
}

// Keyboard is a page's keyboard input device. It tracks the held
// modifier keys so every dispatched event carries the current modifier
// bitmask.
type Keyboard struct {
	ctx  context.Context
	exec cdp.Executor

	modifiers   int64
	pressedKeys map[int64]bool
	layoutName  string
	layout      keyboardlayout.KeyboardLayout
}

// NewKeyboard returns a new keyboard with a "us" layout.
func NewKeyboard(ctx context.Context, exec cdp.Executor) *Keyboard {
	return &Keyboard{
		ctx:         ctx,
		exec:        exec,
		pressedKeys: make(map[int64]bool),
		layoutName:  "us",
		layout:      keyboardlayout.Get("us"),
	}
}

// Modifiers returns the bitmask of currently held modifier keys.
func (k *Keyboard) Modifiers() int64 { return k.modifiers }

// Down dispatches a key down event and, for modifier keys, sets the
// corresponding modifier bit until Up.
func (k *Keyboard) Down(key string) error {
	if err := k.down(key); err != nil {
		return fmt.Errorf("sending key down: %w", err)
	}
	return nil
}

// Up dispatches a key up event and clears the key's modifier bit.
func (k *Keyboard) Up(key string) error {
	if err := k.up(key); err != nil {
		return fmt.Errorf("sending key up: %w", err)
	}
	return nil
}

// Press dispatches a down followed by an up for key. Combinations
// join keys with "+" ("Control+a"): each part goes down left to
// right, then up in reverse.
func (k *Keyboard) Press(key string, opts KeyboardOptions) error {
	if err := k.comboPress(key, opts); err != nil {
		return fmt.Errorf("pressing key: %w", err)
	}
	return nil
}

// InsertText inserts text without dispatching per-key events.
func (k *Keyboard) InsertText(text string) error {
	if err := input.InsertText(text).Do(cdp.WithExecutor(k.ctx, k.exec)); err != nil {
		return fmt.Errorf("inserting text: %w", err)
	}
	return nil
}

// Type presses each character of text in order. Characters the layout
// cannot produce by keypress are inserted as text instead.
func (k *Keyboard) Type(text string, opts KeyboardOptions) error {
	for _, c := range text {
		if opts.Delay > 0 {
			if err := sleepDelay(k.ctx, opts.Delay); err != nil {
				return err
			}
		}
		if k.layout.ValidKeys[keyboardlayout.KeyInput(c)] {
			if err := k.press(string(c), opts); err != nil {
				return fmt.Errorf("typing text: %w", err)
			}
			continue
		}
		if err := k.InsertText(string(c)); err != nil {
			return fmt.Errorf("typing text: %w", err)
		}
	}
	return nil
}

func (k *Keyboard) down(key string) error {
	key = resolvePlatformKey(key)

	keyInput := keyboardlayout.KeyInput(key)
	if !k.layout.ValidKeys[keyInput] {
		return fmt.Errorf("%q is not a valid key for layout %q", key, k.layoutName)
	}

	keyDef := k.keyDefinition(keyInput)
	k.modifiers |= modifierBit(keyDef.Key)
	text := keyDef.Text
	_, autoRepeat := k.pressedKeys[keyDef.KeyCode]
	k.pressedKeys[keyDef.KeyCode] = true

	keyType := input.KeyDown
	if text == "" {
		keyType = input.KeyRawDown
	}

	action := input.DispatchKeyEvent(keyType).
		WithModifiers(input.Modifier(k.modifiers)).
		WithKey(keyDef.Key).
		WithWindowsVirtualKeyCode(keyDef.KeyCode).
		WithCode(keyDef.Code).
		WithLocation(keyDef.Location).
		WithIsKeypad(keyDef.Location == 3).
		WithText(text).
		WithUnmodifiedText(text).
		WithAutoRepeat(autoRepeat)
	if err := action.Do(cdp.WithExecutor(k.ctx, k.exec)); err != nil {
		return fmt.Errorf("dispatching key event down: %w", err)
	}
	return nil
}

func (k *Keyboard) up(key string) error {
	key = resolvePlatformKey(key)

	keyInput := keyboardlayout.KeyInput(key)
	if !k.layout.ValidKeys[keyInput] {
		return fmt.Errorf("%q is not a valid key for layout %q", key, k.layoutName)
	}

	keyDef := k.keyDefinition(keyInput)
	k.modifiers &= ^modifierBit(keyDef.Key)
	delete(k.pressedKeys, keyDef.KeyCode)

	action := input.DispatchKeyEvent(input.KeyUp).
		WithModifiers(input.Modifier(k.modifiers)).
		WithKey(keyDef.Key).
		WithWindowsVirtualKeyCode(keyDef.KeyCode).
		WithCode(keyDef.Code).
		WithLocation(keyDef.Location)
	if err := action.Do(cdp.WithExecutor(k.ctx, k.exec)); err != nil {
		return fmt.Errorf("dispatching key event up: %w", err)
	}
	return nil
}

// keyDefinition resolves a key input against the layout, accounting
// for the shift layer. A key such as `@` only exists on the shift
// layer and implies the shift modifier; a key such as `2` is typed
// as-is even when shift is held, since shift would turn it into `@`.
func (k *Keyboard) keyDefinition(key keyboardlayout.KeyInput) keyboardlayout.KeyDefinition {
	shift := k.modifiers & ModifierKeyShift

	srcKeyDef, ok := k.layout.Keys[key]
	if !ok {
		srcKeyDef, ok = k.layout.KeyDefinition(key)
	}
	var foundInShift bool
	if !ok {
		srcKeyDef = k.layout.ShiftKeyDefinition(key)
		shift = k.modifiers | ModifierKeyShift
		foundInShift = true
	}

	var keyDef keyboardlayout.KeyDefinition
	keyDef.Code = srcKeyDef.Code
	if srcKeyDef.Key != "" {
		keyDef.Key = srcKeyDef.Key
	}
	if len(srcKeyDef.Key) == 1 {
		keyDef.Text = srcKeyDef.Key
	}
	if shift != 0 && srcKeyDef.ShiftKeyCode != 0 {
		keyDef.KeyCode = srcKeyDef.ShiftKeyCode
	}
	if srcKeyDef.KeyCode != 0 {
		keyDef.KeyCode = srcKeyDef.KeyCode
	}
	if srcKeyDef.Location != 0 {
		keyDef.Location = srcKeyDef.Location
	}
	if srcKeyDef.Text != "" {
		keyDef.Text = srcKeyDef.Text
	}
	shiftedLetterOrShiftLayer := (strings.HasPrefix(string(key), "Key") || foundInShift) &&
		shift != 0 && srcKeyDef.ShiftKey != ""
	if shiftedLetterOrShiftLayer {
		keyDef.Key = srcKeyDef.ShiftKey
		keyDef.Text = srcKeyDef.ShiftKey
	}
	// With any modifier besides shift held, a keypress produces no
	// text.
	if k.modifiers & ^ModifierKeyShift != 0 {
		keyDef.Text = ""
	}
	return keyDef
}

func modifierBit(key string) int64 {
	switch key {
	case "Alt":
		return ModifierKeyAlt
	case "Control":
		return ModifierKeyControl
	case "Meta":
		return ModifierKeyMeta
	case "Shift":
		return ModifierKeyShift
	}
	return 0
}

func resolvePlatformKey(key string) string {
	if key == "ControlOrMeta" {
		if runtime.GOOS == "darwin" {
			return "Meta"
		}
		return "Control"
	}
	return key
}

func (k *Keyboard) comboPress(keys string, opts KeyboardOptions) error {
	if opts.Delay > 0 {
		if err := sleepDelay(k.ctx, opts.Delay); err != nil {
			return err
		}
	}

	kk := splitKeys(keys)
	for _, key := range kk {
		if err := k.down(key); err != nil {
			return err
		}
	}
	for i := range kk {
		if err := k.up(kk[len(kk)-i-1]); err != nil {
			return err
		}
	}
	return nil
}

// splitKeys splits a combination on `+` while letting `+` itself be a
// key: "+" is ["+"], "Control++" is ["Control", "+"].
func splitKeys(keys string) []string {
	kk := make([]string, 0, 2)
	var s strings.Builder
	for _, r := range keys {
		if r == '+' && s.Len() > 0 {
			kk = append(kk, s.String())
			s.Reset()
			continue
		}
		s.WriteRune(r)
	}
	return append(kk, s.String())
}

func (k *Keyboard) press(key string, opts KeyboardOptions) error {
	if opts.Delay > 0 {
		if err := sleepDelay(k.ctx, opts.Delay); err != nil {
			return err
		}
	}
	if err := k.down(key); err != nil {
		return err
	}
	return k.up(key)
}

func sleepDelay(ctx context.Context, delay int64) error {
	t := time.NewTimer(time.Duration(delay) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
