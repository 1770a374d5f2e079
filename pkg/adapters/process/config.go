package process

import (
	"fmt"
	"strings"
)

// Command is a configured external command, e.g. the bootloader generator.
type Command struct {
	Command string   `yaml:"command" toml:"command" json:"command" mapstructure:"command"`
	Args    []string `yaml:"args" toml:"args" json:"args" mapstructure:"args"`
}

// IsZero reports whether no command is configured.
func (c Command) IsZero() bool {
	return c.Command == ""
}

func (c Command) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}

// ParseCommand splits a command line such as "grub-mkconfig -o /boot/grub/grub.cfg"
// on whitespace. Quoting is not interpreted; use the structured form for
// arguments containing spaces.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	return Command{Command: fields[0], Args: fields[1:]}, nil
}
