// Package icon provides a small multi-variant registry of feedback symbols for CLI output.
package icon

import (
	"github.com/boxrelay/boxrelay/key"
	"github.com/spf13/viper"
)

const (
	emoji = "emoji"
	plain = "plain"
)

// AvailableVariants returns a slice of all registered icon style identifiers.
func AvailableVariants() []string {
	return []string{emoji, plain}
}

// Icon identifies a symbol in the registry.
type Icon int

const (
	Success Icon = iota
	Fail
	Progress
	Cached
)

type iconDef struct {
	emoji string
	plain string
}

func (d iconDef) Get() string {
	switch viper.GetString(key.IconsVariant) {
	case emoji:
		return d.emoji
	case plain:
		return d.plain
	default:
		return ""
	}
}

var icons = map[Icon]iconDef{
	Success:  {emoji: "✅", plain: "✓"},
	Fail:     {emoji: "❌", plain: "✗"},
	Progress: {emoji: "⏳", plain: "…"},
	Cached:   {emoji: "⚡", plain: "*"},
}

// Get returns the rendered string for a specified Icon identifier from the global registry.
func Get(i Icon) string {
	return icons[i].Get()
}
