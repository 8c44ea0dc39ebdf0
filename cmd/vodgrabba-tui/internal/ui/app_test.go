package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iconidentify/vodgrabba/internal/command"
)

type fakeRunner struct {
	lines []string
	err   error
	block bool
}

func (f *fakeRunner) ExecuteLine(ctx context.Context, line string) error {
	f.lines = append(f.lines, line)
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func TestNewApp_ReturnsBeforeRun(t *testing.T) {
	done := make(chan *App, 1)
	go func() {
		done <- NewApp("test")
	}()

	select {
	case app := <-done:
		if got := app.statusBar.GetText(false); !strings.Contains(got, "Ready") {
			t.Errorf("status = %q, want it to contain Ready", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("NewApp did not return")
	}
}

func TestApp_SetStatusBeforeRun(t *testing.T) {
	app := NewApp("test")

	done := make(chan struct{})
	go func() {
		app.setStatus("Working")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("setStatus blocked without a running event loop")
	}
	if got := app.statusBar.GetText(false); !strings.Contains(got, "Working") {
		t.Errorf("status = %q, want it to contain Working", got)
	}
}

func TestOffer_DropsWhenFull(t *testing.T) {
	ch := make(chan string, 1)

	offer(ch, "first")
	offer(ch, "second")

	if got := <-ch; got != "first" {
		t.Errorf("received %q, want %q", got, "first")
	}
	select {
	case v := <-ch:
		t.Errorf("unexpected extra value %q", v)
	default:
	}
}

func TestApp_ExecuteWritesOutput(t *testing.T) {
	app := NewApp("test")
	runner := &fakeRunner{}
	app.SetRunner(runner)

	if !app.execute("get 123") {
		t.Fatal("execute should keep the app running")
	}

	if len(runner.lines) != 1 || runner.lines[0] != "get 123" {
		t.Errorf("runner lines = %v", runner.lines)
	}
	if got := app.outputView.GetText(false); !strings.Contains(got, "> get 123") {
		t.Errorf("output should echo the command, got %q", got)
	}
	if app.running {
		t.Error("running should be reset after execute")
	}
}

func TestApp_ExecuteReportsError(t *testing.T) {
	app := NewApp("test")
	app.SetRunner(&fakeRunner{err: errors.New(`unknown command "x"`)})

	app.execute("x")

	got := app.outputView.GetText(false)
	if !strings.Contains(got, "Error:\nunknown command \"x\"") {
		t.Errorf("output should report the error, got %q", got)
	}
}

func TestApp_ExecuteExit(t *testing.T) {
	app := NewApp("test")
	app.SetRunner(&fakeRunner{err: command.ErrExit})

	if app.execute("exit") {
		t.Error("execute should report exit")
	}
}

func TestApp_CancelCommand(t *testing.T) {
	app := NewApp("test")
	runner := &fakeRunner{block: true}
	app.SetRunner(runner)

	if app.cancelCommand() {
		t.Error("nothing to cancel before a command starts")
	}

	done := make(chan struct{})
	go func() {
		app.execute("get 1")
		close(done)
	}()

	for !app.cancelCommand() {
	}
	<-done

	if got := app.outputView.GetText(false); !strings.Contains(got, context.Canceled.Error()) {
		t.Errorf("output should report cancellation, got %q", got)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("a\nb"); got != "a" {
		t.Errorf("firstLine = %q, want %q", got, "a")
	}
	if got := firstLine("single"); got != "single" {
		t.Errorf("firstLine = %q, want %q", got, "single")
	}
}
