package twitch

import (
	"regexp"
	"strconv"

	"github.com/iconidentify/vodgrabba/internal/domain"
)

// vodURLPattern matches links like https://www.twitch.tv/videos/1234567890.
var vodURLPattern = regexp.MustCompile(`(?:http|https)://(?:www.)?twitch.tv/videos/(\d+)`)

// ParseVideoID extracts the VOD ID from a twitch.tv video URL or accepts a bare numeric ID.
// The URL form is tried first.
func ParseVideoID(input string) (domain.VideoID, error) {
	if matches := vodURLPattern.FindStringSubmatch(input); len(matches) > 1 {
		return domain.VideoID(matches[1]), nil
	}

	if _, err := strconv.ParseUint(input, 10, 64); err == nil {
		return domain.VideoID(input), nil
	}

	return "", domain.ErrInvalidIdentifier
}
