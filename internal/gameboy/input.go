package gameboy

import (
	"errors"
	"strconv"
	"strings"
)

type Button string

const (
	A      Button = "a"
	B      Button = "b"
	Start  Button = "start"
	Select Button = "select"
	Up     Button = "up"
	Down   Button = "down"
	Left   Button = "left"
	Right  Button = "right"
)

// MaxPresses caps the presses taken from a single chat message.
const MaxPresses = 10

// ErrNotInput is returned for chat messages that are not button presses,
// they should be ignored rather than answered.
var ErrNotInput = errors.New("not an input message")

var aliases = map[string]Button{
	"a": A, "b": B,
	"start": Start, "st": Start,
	"select": Select, "sel": Select,
	"up": Up, "u": Up, "↑": Up,
	"down": Down, "d": Down, "↓": Down,
	"left": Left, "l": Left, "←": Left,
	"right": Right, "r": Right, "→": Right,
}

// ParseInputs turns "a", "up 3" or "a b start" into a list of presses.
// A number repeats the button before it. Presses past MaxPresses are dropped.
func ParseInputs(content string) ([]Button, error) {
	fields := strings.Fields(strings.ToLower(content))
	if len(fields) == 0 {
		return nil, ErrNotInput
	}

	var presses []Button
	var last Button
	for _, f := range fields {
		if b, ok := aliases[f]; ok {
			presses = append(presses, b)
			last = b
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || last == "" || n < 1 {
			return nil, ErrNotInput
		}
		for i := 1; i < n && len(presses) < MaxPresses; i++ {
			presses = append(presses, last)
		}
		last = ""
	}

	if len(presses) > MaxPresses {
		presses = presses[:MaxPresses]
	}
	return presses, nil
}
