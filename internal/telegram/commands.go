package telegram

import (
	"strings"
	"unicode"
)

// Command is the closed set of slash commands the bot understands.
type Command int

const (
	CommandUnknown Command = iota
	CommandStart
	CommandHelp
	CommandBets
	CommandTop
	CommandSport
	CommandDate
	CommandInvoice
	CommandStats
)

var commandNames = map[string]Command{
	"/start":   CommandStart,
	"/help":    CommandHelp,
	"/bets":    CommandBets,
	"/top":     CommandTop,
	"/sport":   CommandSport,
	"/date":    CommandDate,
	"/invoice": CommandInvoice,
	"/stats":   CommandStats,
}

// ParseCommand matches the whole message text against the known commands,
// ignoring case and a trailing @botname mention. Anything else, including
// commands followed by arguments, is CommandUnknown.
func ParseCommand(text string) Command {
	token := strings.ToLower(strings.TrimSpace(text))
	if !strings.HasPrefix(token, "/") || strings.ContainsFunc(token, unicode.IsSpace) {
		return CommandUnknown
	}
	if at := strings.IndexByte(token, '@'); at > 0 {
		token = token[:at]
	}

	if cmd, ok := commandNames[token]; ok {
		return cmd
	}
	return CommandUnknown
}

func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c {
			return strings.TrimPrefix(name, "/")
		}
	}
	return "unknown"
}

// Callback is the closed set of inline button payloads.
type Callback int

const (
	CallbackUnknown Callback = iota
	CallbackWorldwide
	CallbackEthiopia
)

// ParseCallback maps raw callback data to a Callback.
func ParseCallback(data string) Callback {
	switch data {
	case "worldwide":
		return CallbackWorldwide
	case "ethiopia":
		return CallbackEthiopia
	default:
		return CallbackUnknown
	}
}

// Data returns the callback data sent with the inline button.
func (c Callback) Data() string {
	switch c {
	case CallbackWorldwide:
		return "worldwide"
	case CallbackEthiopia:
		return "ethiopia"
	default:
		return ""
	}
}

func (c Callback) String() string {
	if data := c.Data(); data != "" {
		return data
	}
	return "unknown"
}

// Region selects which invoice and payment route a purchase takes.
type Region int

const (
	RegionUnknown Region = iota
	RegionWorldwide
	RegionEthiopia
)

// Region returns the purchase region chosen by the callback.
func (c Callback) Region() Region {
	switch c {
	case CallbackWorldwide:
		return RegionWorldwide
	case CallbackEthiopia:
		return RegionEthiopia
	default:
		return RegionUnknown
	}
}

func (r Region) String() string {
	switch r {
	case RegionWorldwide:
		return "worldwide"
	case RegionEthiopia:
		return "ethiopia"
	default:
		return "unknown"
	}
}

// ParseRegion is the inverse of Region.String.
func ParseRegion(value string) Region {
	switch value {
	case "worldwide":
		return RegionWorldwide
	case "ethiopia":
		return RegionEthiopia
	default:
		return RegionUnknown
	}
}
