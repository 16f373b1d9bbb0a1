// Package cli parses glassbridge command lines.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandServe   Command = "serve"
	CommandCall    Command = "call"
	CommandListen  Command = "listen"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandContact Command = "contact"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// arity is the accepted positional argument count range per command.
type arity struct {
	min, max int
	usage    string
}

var commands = map[Command]arity{
	CommandServe:   {},
	CommandCall:    {min: 1, max: 2, usage: "call <method> [json-arguments]"},
	CommandListen:  {min: 1, max: 1, usage: "listen <channel|host>"},
	CommandStatus:  {},
	CommandDevices: {},
	CommandContact: {min: 1, max: 3, usage: "contact add <number> <name> | contact list"},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	commandSeen := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if commandSeen {
			if arg == "--" {
				parsed.Args = append(parsed.Args, args[i+1:]...)
				break
			}
			parsed.Args = append(parsed.Args, arg)
			continue
		}

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := commands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			commandSeen = true
		}
	}

	if err := checkArity(parsed); err != nil {
		return Parsed{}, err
	}
	if parsed.Command == CommandContact {
		if err := checkContactArgs(parsed.Args); err != nil {
			return Parsed{}, err
		}
	}
	return parsed, nil
}

func checkArity(parsed Parsed) error {
	a := commands[parsed.Command]
	n := len(parsed.Args)
	if n >= a.min && n <= a.max {
		return nil
	}
	if a.usage == "" {
		return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
	}
	return fmt.Errorf("usage: %s", a.usage)
}

func checkContactArgs(args []string) error {
	switch {
	case args[0] == "add" && len(args) == 3:
		return nil
	case args[0] == "list" && len(args) == 1:
		return nil
	default:
		return fmt.Errorf("usage: %s", commands[CommandContact].usage)
	}
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Commands:
  serve                        Run the bridge (method socket, event server, collaborators)
  call <method> [json-args]    Invoke one bridge method and print its result
  listen <channel|host>        Print events from a channel, or host invocations
  status                       Print whether a bridge is running
  devices                      List available input devices
  contact add <number> <name>  Store a caller-ID contact
  contact list                 Print stored contacts
  doctor                       Run configuration and environment checks
  version                      Print version information
  help                         Show this help

Channels:
  eventBleStatus eventBleReceive eventSpeechRecognize
  eventNotificationReceived eventNotificationListenerStatus

Flags:
  --config PATH   Config file path (default: $GLASSBRIDGE_CONFIG, then $XDG_CONFIG_HOME/glassbridge/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
