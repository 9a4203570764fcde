package view

import (
	"errors"
	"fmt"
	"strings"
)

type CommandKind int

const (
	CmdSay CommandKind = iota
	CmdTo
	CmdGlobal
	CmdContacts
	CmdUsers
	CmdOpen
	CmdMinimize
	CmdAccept
	CmdReject
	CmdDismiss
	CmdLeave
	CmdHelp
	CmdQuit
)

type Command struct {
	Kind CommandKind
	// Arg is the message text for CmdSay, the peer for CmdTo and the role
	// for CmdUsers.
	Arg   string
	Query string
}

var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand turns one input line into a command. Lines that do not
// start with a slash are chat text.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdSay, Arg: line}, nil
	}

	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	command := parts[0]
	rest := ""
	if len(parts) > 1 {
		rest = strings.TrimSpace(parts[1])
	}

	switch command {
	case "/to", "/w":
		if rest == "" {
			return Command{}, fmt.Errorf("%s needs a username", command)
		}
		return Command{Kind: CmdTo, Arg: strings.Fields(rest)[0]}, nil
	case "/global", "/all":
		return Command{Kind: CmdGlobal}, nil
	case "/contacts":
		return Command{Kind: CmdContacts}, nil
	case "/users":
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return Command{}, errors.New("/users needs a role")
		}
		return Command{Kind: CmdUsers, Arg: fields[0], Query: strings.Join(fields[1:], " ")}, nil
	case "/open":
		return Command{Kind: CmdOpen}, nil
	case "/minimize":
		return Command{Kind: CmdMinimize}, nil
	case "/accept":
		return Command{Kind: CmdAccept}, nil
	case "/reject":
		return Command{Kind: CmdReject}, nil
	case "/dismiss":
		return Command{Kind: CmdDismiss}, nil
	case "/leave":
		return Command{Kind: CmdLeave}, nil
	case "/help":
		return Command{Kind: CmdHelp}, nil
	case "/quit", "/exit":
		return Command{Kind: CmdQuit}, nil
	default:
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

const Help = `commands:
  /to <user>             private conversation
  /global                global room
  /contacts              refresh contacts
  /users <role> [query]  search users
  /open /minimize        show or hide the pending invite
  /accept /reject /dismiss
  /leave                 leave the live match
  /quit`
