package inspect

// Command is an operator command polled once per frame.
type Command int

const (
	// CommandNone means no input this frame, or input that is not recognised.
	CommandNone Command = iota
	CommandCommit
	CommandShowRecent
	CommandHealthyOnly
	CommandDiseasedOnly
	CommandAll
	CommandClear
	CommandQuit
)

var commandNames = map[Command]string{
	CommandNone:         "none",
	CommandCommit:       "commit",
	CommandShowRecent:   "recent",
	CommandHealthyOnly:  "healthy",
	CommandDiseasedOnly: "diseased",
	CommandAll:          "all",
	CommandClear:        "clear",
	CommandQuit:         "quit",
}

var keyCommands = map[rune]Command{
	'g': CommandCommit,
	'v': CommandShowRecent,
	's': CommandHealthyOnly,
	'e': CommandDiseasedOnly,
	'a': CommandAll,
	'c': CommandClear,
	'q': CommandQuit,
}

// String returns the command name used by the HTTP command endpoint.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "none"
}

// KeyCommand maps a key code from the display window to a command.
// Negative codes (no key pressed) and unknown keys map to CommandNone.
func KeyCommand(key int) Command {
	if key < 0 {
		return CommandNone
	}
	if cmd, ok := keyCommands[rune(key&0xFF)]; ok {
		return cmd
	}
	return CommandNone
}

// ParseCommand resolves a command by name. Unknown names map to CommandNone.
func ParseCommand(name string) Command {
	for cmd, n := range commandNames {
		if n == name {
			return cmd
		}
	}
	return CommandNone
}
