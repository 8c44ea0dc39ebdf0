package service

import (
	"fmt"
	"strings"

	"github.com/iconidentify/vodgrabba/internal/domain"
)

// serverValueOptions are ffmpeg options a queued job may pass, each taking
// exactly one value. Options that name files (filters, -f, extra outputs)
// are left out so the destination stays the only thing ffmpeg writes.
var serverValueOptions = map[string]bool{
	"-ss":       true,
	"-t":        true,
	"-to":       true,
	"-c":        true,
	"-codec":    true,
	"-vcodec":   true,
	"-acodec":   true,
	"-b":        true,
	"-crf":      true,
	"-preset":   true,
	"-tune":     true,
	"-profile":  true,
	"-pix_fmt":  true,
	"-r":        true,
	"-s":        true,
	"-ar":       true,
	"-ac":       true,
	"-q":        true,
	"-map":      true,
	"-movflags": true,
	"-threads":  true,
}

// serverFlagOptions take no value.
var serverFlagOptions = map[string]bool{
	"-an":       true,
	"-vn":       true,
	"-sn":       true,
	"-dn":       true,
	"-copyts":   true,
	"-shortest": true,
}

// validateServerArgs checks converter arguments sent through the API. Every
// argument must be an allow-listed option or the single value following one;
// a stray positional value would become an extra ffmpeg output.
func validateServerArgs(args []string) error {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		// Stream specifiers: -c:v, -b:a, -q:v
		name, _, _ := strings.Cut(arg, ":")

		switch {
		case serverFlagOptions[arg]:
		case serverValueOptions[name]:
			if i+1 >= len(args) {
				return fmt.Errorf("%w: %s requires a value", domain.ErrConverterArgNotAllowed, arg)
			}
			i++
		default:
			return fmt.Errorf("%w: %q", domain.ErrConverterArgNotAllowed, arg)
		}
	}
	return nil
}
