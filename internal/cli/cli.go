package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandSession   Command = "session"
	CommandSpeak     Command = "speak"
	CommandStop      Command = "stop"
	CommandCancel    Command = "cancel"
	CommandReset     Command = "reset"
	CommandStatus    Command = "status"
	CommandSummary   Command = "summary"
	CommandHistory   Command = "history"
	CommandEnd       Command = "end"
	CommandLanguages Command = "languages"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandSession:   {},
	CommandSpeak:     {},
	CommandStop:      {},
	CommandCancel:    {},
	CommandReset:     {},
	CommandStatus:    {},
	CommandSummary:   {},
	CommandHistory:   {},
	CommandEnd:       {},
	CommandLanguages: {},
	CommandDevices:   {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	// Role is the speak argument.
	Role string
	// Initiator and Respondent override the configured languages for session.
	Initiator  string
	Respondent string
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

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
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if err := parseCommandArgs(&parsed, args[i+1:]); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func parseCommandArgs(parsed *Parsed, rest []string) error {
	switch parsed.Command {
	case CommandSpeak:
		if len(rest) == 0 {
			return errors.New("speak requires a role (initiator|respondent)")
		}
		if strings.HasPrefix(rest[0], "-") {
			return fmt.Errorf("unknown flag: %s", rest[0])
		}
		parsed.Role = rest[0]
		if len(rest) > 1 {
			return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
		}
		return nil
	case CommandSession:
		for i := 0; i < len(rest); i++ {
			flag := rest[i]
			var target *string
			switch flag {
			case "--initiator":
				target = &parsed.Initiator
			case "--respondent":
				target = &parsed.Respondent
			default:
				if strings.HasPrefix(flag, "-") {
					return fmt.Errorf("unknown flag: %s", flag)
				}
				return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
			}
			i++
			if i >= len(rest) || strings.HasPrefix(rest[i], "-") {
				return fmt.Errorf("%s requires a language code", flag)
			}
			*target = rest[i]
		}
		return nil
	default:
		if len(rest) > 0 {
			return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
		}
		return nil
	}
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Session:
  session     Own the conversation session and serve commands
              --initiator LANG   initiator language (default: config)
              --respondent LANG  respondent language (default: config)
  speak ROLE  Take the floor for initiator|respondent (again to stop)
  stop        Stop the active capture and translate it
  cancel      Discard the active turn or summary
  reset       Return to idle, keeping the conversation history
  status      Print the session phase
  summary     Summarize the conversation in both languages
  history     Print the recorded exchanges
  end         Discard the history and stop the session owner

Tools:
  languages   List supported languages
  devices     List available input devices
  doctor      Run configuration and environment checks
  version     Print version information
  help        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/talkthru/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
