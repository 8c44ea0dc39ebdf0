// Package ui provides the terminal user interface for vodgrabba.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/vodgrabba/internal/command"
)

// Runner executes one console line.
type Runner interface {
	ExecuteLine(ctx context.Context, line string) error
}

// App is the main TUI application.
type App struct {
	app     *tview.Application
	pages   *tview.Pages
	version string
	runner  Runner

	// UI components
	mainFlex     *tview.Flex
	header       *tview.TextView
	footer       *tview.TextView
	statusBar    *tview.TextView
	outputView   *tview.TextView
	commandInput *tview.InputField

	// State
	started   atomic.Bool
	mu        sync.Mutex
	running   bool
	cmdCancel context.CancelFunc
}

// NewApp creates a new TUI application. SetRunner must be called before Run.
func NewApp(version string) *App {
	a := &App{
		app:     tview.NewApplication(),
		pages:   tview.NewPages(),
		version: version,
	}
	a.setupUI()
	return a
}

// SetRunner installs the command runner.
func (a *App) SetRunner(r Runner) {
	a.runner = r
}

// Output returns the writer backing the output pane. It is safe for
// concurrent use and is meant for ffmpeg output, logs and command results.
func (a *App) Output() io.Writer {
	return a.outputView
}

func (a *App) setupUI() {
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)
	a.header.SetText(fmt.Sprintf("\n[white::b]vodgrabba[white] %s - Twitch VOD downloader", a.version))

	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[yellow]Enter[white]:Run [yellow]Ctrl+C[white]:Cancel download [yellow]Tab[white]:Scroll output [yellow]Ctrl+Q[white]:Quit")
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)

	a.statusBar = tview.NewTextView().
		SetDynamicColors(true)
	a.statusBar.SetBackgroundColor(tcell.ColorDarkGreen)

	// ffmpeg output is shown verbatim; color tags would mangle it.
	a.outputView = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true).
		SetMaxLines(5000).
		SetChangedFunc(func() {
			if a.started.Load() {
				a.app.Draw()
			}
		})
	a.outputView.SetBorder(true).SetTitle(" Output ")

	a.commandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetFieldBackgroundColor(tcell.ColorDarkBlue).
		SetPlaceholder("get <url-or-id> [outputPath]   (type help for all commands)")
	a.commandInput.SetBorder(true).SetTitle(" Command ")
	a.commandInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		line := strings.TrimSpace(a.commandInput.GetText())
		if line == "" {
			return
		}
		a.commandInput.SetText("")
		a.submit(line)
	})

	console := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.outputView, 0, 1, false).
		AddItem(a.commandInput, 3, 0, true)
	a.pages.AddPage("console", console, true, true)

	a.mainFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 3, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false).
		AddItem(a.footer, 1, 0, false)

	a.app.SetInputCapture(a.handleGlobalKeys)
	a.app.SetRoot(a.mainFlex, true)
	a.setStatus("[green]Ready")
}

// handleGlobalKeys handles global keyboard shortcuts.
func (a *App) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlC:
		if a.cancelCommand() {
			a.setStatus("[yellow]Canceling...")
		}
		return nil
	case tcell.KeyCtrlQ:
		a.Stop()
		return nil
	case tcell.KeyTab:
		if a.app.GetFocus() == a.commandInput {
			a.app.SetFocus(a.outputView)
		} else {
			a.app.SetFocus(a.commandInput)
		}
		return nil
	}
	return event
}

// submit starts a command off the UI goroutine. Only one runs at a time.
func (a *App) submit(line string) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		a.setStatus("[yellow]A command is already running (Ctrl+C cancels it)")
		return
	}
	a.running = true
	a.mu.Unlock()

	go a.execute(line)
}

// execute runs one line and reports the outcome. It returns false when the
// user asked to exit.
func (a *App) execute(line string) bool {
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.running = true
	a.cmdCancel = cancel
	a.mu.Unlock()

	defer func() {
		cancel()
		a.mu.Lock()
		a.running = false
		a.cmdCancel = nil
		a.mu.Unlock()
	}()

	fmt.Fprintf(a.outputView, "> %s\n", line)
	a.setStatus("[yellow]Running: " + tview.Escape(line))
	start := time.Now()

	err := a.runner.ExecuteLine(ctx, line)
	switch {
	case err == nil, errors.Is(err, command.ErrNoCommand):
		a.setStatus(fmt.Sprintf("[green]Done in %s", time.Since(start).Round(time.Second)))
	case errors.Is(err, command.ErrExit):
		a.Stop()
		return false
	default:
		fmt.Fprintf(a.outputView, "Error:\n%v\n", err)
		a.setStatus("[red]" + tview.Escape(firstLine(err.Error())))
	}
	return true
}

func (a *App) cancelCommand() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cmdCancel == nil {
		return false
	}
	a.cmdCancel()
	return true
}

// PromptSecret shows a masked input dialog and blocks until the user
// confirms or cancels. It must not be called on the UI goroutine.
func (a *App) PromptSecret() (string, error) {
	result := make(chan string, 1)
	canceled := errors.New("token entry canceled")

	a.app.QueueUpdateDraw(func() {
		field := tview.NewInputField().
			SetLabel("OAuth token: ").
			SetFieldWidth(0).
			SetMaskCharacter('*')
		form := tview.NewForm().AddFormItem(field)
		form.AddButton("Save", func() {
			offer(result, field.GetText())
		})
		form.AddButton("Cancel", func() {
			offer(result, "")
		})
		form.SetBorder(true).SetTitle(" Save auth token ")

		modal := tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
				AddItem(nil, 0, 1, false).
				AddItem(form, 7, 0, true).
				AddItem(nil, 0, 1, false), 60, 0, true).
			AddItem(nil, 0, 1, false)

		a.pages.AddPage("token", modal, true, true)
		a.app.SetFocus(form)
	})

	token := <-result
	a.app.QueueUpdateDraw(func() {
		a.pages.RemovePage("token")
		a.app.SetFocus(a.commandInput)
	})

	if token == "" {
		return "", canceled
	}
	return token, nil
}

// setStatus updates the status bar from any goroutine. Before Run starts the
// event loop there is nothing to queue on, so the text is set directly.
func (a *App) setStatus(msg string) {
	text := fmt.Sprintf(" %s | %s", msg, time.Now().Format("15:04:05"))
	if !a.started.Load() {
		a.statusBar.SetText(text)
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetText(text)
	})
}

// offer sends v unless ch is already full. Extra button presses are dropped
// so the UI goroutine never blocks.
func offer(ch chan<- string, v string) {
	select {
	case ch <- v:
	default:
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Run starts the TUI application.
func (a *App) Run() error {
	a.started.Store(true)
	defer a.started.Store(false)
	return a.app.Run()
}

// Stop cancels any running command and stops the TUI application.
func (a *App) Stop() {
	a.cancelCommand()
	a.started.Store(false)
	a.app.Stop()
}
