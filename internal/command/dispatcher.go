// Package command parses and runs the interactive command language shared by
// the CLI and the terminal UI:
//
//	get <url-or-id> [--auth <token>] [--input-args <args>] [--output-args <args>] [outputPath]
//	auth token set [token]
//	auth token get
//	auth token clear
//	help
//	exit
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/shlex"

	"github.com/iconidentify/vodgrabba/internal/domain"
	"github.com/iconidentify/vodgrabba/internal/service"
)

var (
	// ErrExit is returned by the exit command. Loops stop when they see it.
	ErrExit = errors.New("exit requested")

	// ErrNoCommand is returned for a blank line.
	ErrNoCommand = errors.New("no command specified")

	// ErrMissingInput is returned when get has no URL or ID.
	ErrMissingInput = errors.New("no URL or VOD ID provided")
)

// Service is what the dispatcher needs from the download service.
type Service interface {
	Download(ctx context.Context, req service.DownloadRequest) (*service.DownloadResult, error)
	SetAuthToken(ctx context.Context, token string) error
	AuthToken(ctx context.Context) (string, error)
	ClearAuthToken(ctx context.Context) error
}

// TokenReader asks the user for a token when "auth token set" has no argument.
type TokenReader func() (string, error)

// Dispatcher runs commands against a Service and writes results to out.
type Dispatcher struct {
	svc       Service
	out       io.Writer
	readToken TokenReader
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(svc Service, out io.Writer) *Dispatcher {
	return &Dispatcher{
		svc: svc,
		out: out,
	}
}

// SetTokenReader installs the prompt used by "auth token set" without a value.
func (d *Dispatcher) SetTokenReader(r TokenReader) {
	d.readToken = r
}

// ExecuteLine splits a line with shell quoting rules and runs it.
func (d *Dispatcher) ExecuteLine(ctx context.Context, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	return d.Execute(ctx, args)
}

// Execute runs an already tokenized command.
func (d *Dispatcher) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrNoCommand
	}

	switch args[0] {
	case "get":
		if err := d.get(ctx, args[1:]); err != nil {
			return err
		}
	case "auth":
		if err := d.auth(ctx, args[1:]); err != nil {
			return err
		}
	case "help":
		fmt.Fprint(d.out, usage)
		return nil
	case "exit", "quit":
		return ErrExit
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	fmt.Fprintln(d.out, "Success!")
	return nil
}

func (d *Dispatcher) get(ctx context.Context, args []string) error {
	req, err := parseGetArgs(args)
	if err != nil {
		return err
	}

	if req.OutputPath == "" {
		fmt.Fprintln(d.out, "No output path provided... Will use the default output path.")
	}

	result, err := d.svc.Download(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(d.out, "Saved VOD %s to %s\n", result.VideoID, result.OutputPath)
	return nil
}

func parseGetArgs(args []string) (service.DownloadRequest, error) {
	var req service.DownloadRequest
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			positional = append(positional, arg)
			continue
		}

		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--auth", "--input-args", "--output-args":
		default:
			return req, fmt.Errorf("unknown flag %q", name)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return req, fmt.Errorf("%s requires a value", name)
			}
			i++
			value = args[i]
		}

		switch name {
		case "--auth":
			req.AuthToken = value
		case "--input-args":
			req.InputArgs = append(req.InputArgs, domain.SplitArgs(value)...)
		case "--output-args":
			req.OutputArgs = append(req.OutputArgs, domain.SplitArgs(value)...)
		}
	}

	switch len(positional) {
	case 0:
		return req, ErrMissingInput
	case 1:
		req.Input = positional[0]
	case 2:
		req.Input = positional[0]
		req.OutputPath = positional[1]
	default:
		return req, fmt.Errorf("too many arguments: %s", strings.Join(positional[2:], " "))
	}

	return req, nil
}

func (d *Dispatcher) auth(ctx context.Context, args []string) error {
	if len(args) < 2 || args[0] != "token" {
		return errors.New("usage: auth token {set [token]|get|clear}")
	}

	switch args[1] {
	case "set":
		return d.setToken(ctx, args[2:])
	case "get":
		token, err := d.svc.AuthToken(ctx)
		if errors.Is(err, domain.ErrSettingNotFound) {
			fmt.Fprintln(d.out, "No auth token saved.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(d.out, token)
		return nil
	case "clear":
		return d.svc.ClearAuthToken(ctx)
	default:
		return fmt.Errorf("unknown auth token action %q", args[1])
	}
}

func (d *Dispatcher) setToken(ctx context.Context, args []string) error {
	var token string
	switch {
	case len(args) > 1:
		return errors.New("usage: auth token set [token]")
	case len(args) == 1:
		token = args[0]
	case d.readToken != nil:
		t, err := d.readToken()
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		token = t
	default:
		return domain.ErrEmptyAuthToken
	}

	return d.svc.SetAuthToken(ctx, token)
}

const usage = `Commands:
  get <url-or-id> [--auth <token>] [--input-args <args>] [--output-args <args>] [outputPath]
      Download a VOD. outputPath defaults to ttv_vod.mp4; its extension picks the format.
  auth token set [token]   Save the OAuth token used for subscriber-only VODs.
  auth token get           Print the saved token.
  auth token clear         Forget the saved token.
  help                     Show this help.
  exit                     Leave interactive mode.
`
