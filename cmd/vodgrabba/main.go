package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/iconidentify/vodgrabba/internal/command"
	"github.com/iconidentify/vodgrabba/internal/config"
	"github.com/iconidentify/vodgrabba/internal/repository"
	"github.com/iconidentify/vodgrabba/internal/service"
	"github.com/iconidentify/vodgrabba/pkg/ffmpeg"
	"github.com/iconidentify/vodgrabba/pkg/twitch"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file")
	verbose := flag.Bool("v", false, "Log debug output (ffmpeg arguments, patched manifest)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [command]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Without a command an interactive prompt is started.")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("vodgrabba %s (built %s)\n", Version, BuildTime)
		return 0
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error:\n%v\n", err)
		return 1
	}

	settings, err := repository.NewSQLiteSettingsRepository(cfg.Storage.SettingsPath, cfg.Storage.SettingsPassphrase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error:\n%v\n", err)
		return 1
	}
	defer settings.Close()

	svc := service.NewDownloadService(
		twitch.NewClient(cfg.Twitch, logger),
		ffmpeg.NewConverter(cfg.Converter, logger),
		settings,
		nil,
		cfg.Storage,
		logger,
	)

	con := newConsole(os.Stdin, os.Stdout)
	dispatcher := command.NewDispatcher(svc, os.Stdout)
	dispatcher.SetTokenReader(con.readToken)

	if flag.NArg() > 0 {
		return runOnce(dispatcher, flag.Args())
	}
	return runInteractive(dispatcher, con)
}

// runOnce executes the command given on the command line.
func runOnce(d *command.Dispatcher, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Execute(ctx, args); err != nil && !errors.Is(err, command.ErrExit) {
		fmt.Fprintf(os.Stderr, "Error:\n%v\n", err)
		return 1
	}
	return 0
}

// runInteractive reads commands until EOF or exit. Errors are reported and
// the loop continues. An interrupt cancels only the running command.
func runInteractive(d *command.Dispatcher, con *console) int {
	if con.interactive {
		fmt.Fprintf(con.out, "vodgrabba %s. Type \"help\" for commands.\n", Version)
	}

	for {
		line, ok := con.readLine("> ")
		if !ok {
			return 0
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err := d.ExecuteLine(ctx, line)
		stop()

		switch {
		case err == nil, errors.Is(err, command.ErrNoCommand):
		case errors.Is(err, command.ErrExit):
			return 0
		default:
			fmt.Fprintf(con.out, "Error:\n%v\n", err)
		}
	}
}

// console reads lines and secrets from stdin. Prompts are only shown when
// stdin is a terminal so piped input produces clean output.
type console struct {
	in          *bufio.Scanner
	out         io.Writer
	fd          int
	interactive bool
}

func newConsole(in *os.File, out io.Writer) *console {
	fd := int(in.Fd())
	return &console{
		in:          bufio.NewScanner(in),
		out:         out,
		fd:          fd,
		interactive: term.IsTerminal(fd),
	}
}

func (c *console) readLine(prompt string) (string, bool) {
	if c.interactive {
		fmt.Fprint(c.out, prompt)
	}
	if !c.in.Scan() {
		return "", false
	}
	return c.in.Text(), true
}

// readToken prompts for the OAuth token without echoing it.
func (c *console) readToken() (string, error) {
	if c.interactive {
		fmt.Fprint(c.out, "OAuth token: ")
		token, err := term.ReadPassword(c.fd)
		fmt.Fprintln(c.out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(token)), nil
	}

	line, ok := c.readLine("")
	if !ok {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(line), nil
}
