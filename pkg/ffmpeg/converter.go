package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/iconidentify/vodgrabba/internal/config"
	"github.com/iconidentify/vodgrabba/internal/domain"
)

// protocolWhitelist limits the input schemes ffmpeg may follow from the manifest.
const protocolWhitelist = "http,https,tls,tcp,file,pipe"

const installHint = "Please install it by either downloading and placing the executable in the same directory as vodgrabba, " +
	"or install it globally by adding the FFmpeg directory to your PATH variable (or equivalent for non-windows systems)\n" +
	"https://ffmpeg.org/download.html"

// waitDelay bounds how long Wait keeps copying output after ffmpeg is killed.
const waitDelay = 5 * time.Second

// Converter remuxes an HLS manifest read from stdin into a file using ffmpeg.
type Converter struct {
	binaryPath string
	logLevel   string
	stdout     io.Writer
	stderr     io.Writer
	logger     *slog.Logger
}

// NewConverter creates a converter. ffmpeg output goes to the process's own
// stdout and stderr unless SetOutput is called.
func NewConverter(cfg config.ConverterConfig, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	binaryPath := cfg.BinaryPath
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}
	return &Converter{
		binaryPath: binaryPath,
		logLevel:   logLevel,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		logger:     logger,
	}
}

// SetOutput redirects ffmpeg's stdout and stderr. Nil discards the stream.
func (c *Converter) SetOutput(stdout, stderr io.Writer) {
	c.stdout = stdout
	c.stderr = stderr
}

// Args returns the ffmpeg argument vector for a request.
func (c *Converter) Args(req domain.ConversionRequest) []string {
	args := []string{
		"-y",
		"-loglevel", c.logLevel,
		"-protocol_whitelist", protocolWhitelist,
		"-f", "hls",
	}
	args = append(args, req.InputArgs...)
	args = append(args, "-i", "pipe:0")
	args = append(args, req.OutputArgs...)
	args = append(args, SanitizeOutputPath(req.Destination))
	return args
}

// SanitizeOutputPath replaces spaces with underscores so output names stay
// compatible with files written by earlier releases.
func SanitizeOutputPath(path string) string {
	return strings.ReplaceAll(path, " ", "_")
}

// Convert starts ffmpeg, writes the manifest to its stdin, closes stdin and
// waits for it to exit. ffmpeg reads stdin until EOF before it finalizes the
// output, so the pipe must be closed before Wait.
func (c *Converter) Convert(ctx context.Context, req domain.ConversionRequest) error {
	args := c.Args(req)
	c.logger.Debug("constructed ffmpeg args", "args", strings.Join(args, " "))

	binary, err := c.resolveBinary()
	if err != nil {
		return notInstalled(err)
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr
	cmd.WaitDelay = waitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPipeWriteFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return notInstalled(err)
	}
	c.logger.Debug("ffmpeg started", "pid", cmd.Process.Pid, "manifest_bytes", len(req.Manifest))

	writeErr := writeAndClose(stdin, req.Manifest)
	waitErr := cmd.Wait()

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("conversion canceled: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &domain.ConversionError{ExitCode: exitErr.ExitCode()}
		}
		return fmt.Errorf("%w: wait: %v", domain.ErrConversionFailed, waitErr)
	}
	if writeErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrPipeWriteFailed, writeErr)
	}

	return nil
}

// writeAndClose writes and flushes data, then always releases the write end.
func writeAndClose(w io.WriteCloser, data []byte) error {
	bw := bufio.NewWriter(w)
	_, err := bw.Write(data)
	if err == nil {
		err = bw.Flush()
	}
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	return err
}

// resolveBinary looks for ffmpeg on PATH, then in the working directory
// and next to the running executable.
func (c *Converter) resolveBinary() (string, error) {
	path, err := exec.LookPath(c.binaryPath)
	if err == nil {
		return path, nil
	}
	if errors.Is(err, exec.ErrDot) {
		return path, nil
	}
	if strings.ContainsAny(c.binaryPath, `/\`) {
		return "", err
	}

	var dirs []string
	if wd, wdErr := os.Getwd(); wdErr == nil {
		dirs = append(dirs, wd)
	}
	if exe, exeErr := os.Executable(); exeErr == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	for _, dir := range dirs {
		if p, lookErr := exec.LookPath(filepath.Join(dir, c.binaryPath)); lookErr == nil {
			return p, nil
		}
	}

	return "", err
}

func notInstalled(err error) error {
	return fmt.Errorf("%w: %v\n%s", domain.ErrConverterNotInstalled, err, installHint)
}
