package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

// MessageType selects how a CLI message is decorated.
type MessageType int

// Message types of the CLI output.
const (
	DefaultMessage MessageType = iota
	SuccessMessage
	ErrorMessage
	StatusMessage
)

// DefaultColor resets the terminal attributes.
const DefaultColor = "\x1b[0m"

var messageColors = map[MessageType]string{
	DefaultMessage: DefaultColor,
	StatusMessage:  "\x1b[36m",
	SuccessMessage: "\x1b[32m",
	ErrorMessage:   "\x1b[31m",
}

var plain atomic.Bool

// SetPlain turns message decoration off, for output that is redirected to a
// file or another process.
func SetPlain(on bool) {
	plain.Store(on)
}

// DecorateText wraps s in the color of msgType. Unknown types and plain
// output leave s untouched.
func DecorateText(s string, msgType MessageType) string {
	c, ok := messageColors[msgType]
	if !ok || plain.Load() {
		return s
	}
	return c + s + DefaultColor
}

// FormatTime renders a render duration: milliseconds below a second, then
// seconds with two decimals, with minutes and hours split off when reached.
func FormatTime(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %.2fs", int(d/time.Minute), (d % time.Minute).Seconds())
	}
	return fmt.Sprintf("%dh %dm %.2fs", int(d/time.Hour), int(d%time.Hour/time.Minute), (d % time.Minute).Seconds())
}
