package proxy

import "strings"

// Control is a command issued by reacting to a relayed message.
type Control int

const (
	ControlNone Control = iota
	ControlDelete
	ControlHelp
	ControlEdit
	ControlInfo
)

const (
	SymbolDelete = "✖"
	SymbolHelp   = "❔"
	SymbolEdit   = "📝"
	SymbolInfo   = "📋"
)

// relayControls is the order reactions are attached in.
var relayControls = []Control{ControlDelete, ControlHelp, ControlEdit, ControlInfo}

// ParseControl maps a reaction emoji to a Control. Discord may report
// glyphs with a trailing variation selector, which is ignored.
func ParseControl(symbol string) Control {
	switch strings.TrimSuffix(symbol, "\ufe0f") {
	case SymbolDelete:
		return ControlDelete
	case SymbolHelp:
		return ControlHelp
	case SymbolEdit:
		return ControlEdit
	case SymbolInfo:
		return ControlInfo
	}
	return ControlNone
}

// Symbol returns the emoji for c, or "" for ControlNone.
func (c Control) Symbol() string {
	switch c {
	case ControlDelete:
		return SymbolDelete
	case ControlHelp:
		return SymbolHelp
	case ControlEdit:
		return SymbolEdit
	case ControlInfo:
		return SymbolInfo
	}
	return ""
}

func (c Control) String() string {
	switch c {
	case ControlDelete:
		return "delete"
	case ControlHelp:
		return "help"
	case ControlEdit:
		return "edit"
	case ControlInfo:
		return "info"
	}
	return "none"
}
