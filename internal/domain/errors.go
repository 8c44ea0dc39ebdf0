package domain

import (
	"errors"
	"fmt"
)

// Pipeline errors. Each one is surfaced to the user as is.
var (
	// ErrInvalidIdentifier is returned when input is neither a VOD URL nor a numeric ID.
	ErrInvalidIdentifier = errors.New("please enter a valid url or vod ID")

	// ErrAuthRequestFailed is returned when the access token request fails or is rejected.
	ErrAuthRequestFailed = errors.New("playback access token request failed")

	// ErrMalformedAuthResponse is returned when the token response lacks signature or value.
	ErrMalformedAuthResponse = errors.New("malformed playback access token response")

	// ErrManifestFetchFailed is returned when the signed playlist cannot be downloaded.
	ErrManifestFetchFailed = errors.New("could not download VOD")

	// ErrConverterNotInstalled is returned when the ffmpeg process cannot be started.
	ErrConverterNotInstalled = errors.New("ffmpeg could not be started")

	// ErrPipeWriteFailed is returned when streaming the manifest into ffmpeg fails.
	ErrPipeWriteFailed = errors.New("could not pipe input to ffmpeg")

	// ErrConversionFailed is returned when ffmpeg exits with a non-zero status.
	ErrConversionFailed = errors.New("ffmpeg did not exit with code 0 (OK), please check the ffmpeg output above")
)

// Storage and queue errors.
var (
	// ErrSettingNotFound is returned when a settings key has no value.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoJobs is returned when there are no jobs to process.
	ErrNoJobs = errors.New("no jobs available")

	// ErrEmptyAuthToken is returned when saving a blank auth token.
	ErrEmptyAuthToken = errors.New("auth token must not be empty")

	// ErrConverterArgNotAllowed is returned when a queued download carries an
	// ffmpeg argument outside the server allow-list.
	ErrConverterArgNotAllowed = errors.New("converter argument not allowed")
)

// ConversionError reports a converter run that exited unsuccessfully.
type ConversionError struct {
	ExitCode int
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s (exit code %d)", ErrConversionFailed.Error(), e.ExitCode)
}

func (e *ConversionError) Unwrap() error {
	return ErrConversionFailed
}

// DownloadError wraps a pipeline error with the VOD and stage it happened in.
type DownloadError struct {
	VideoID VideoID
	Op      string
	Err     error
}

func (e *DownloadError) Error() string {
	if e.VideoID != "" {
		return e.Op + " [" + e.VideoID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// NewDownloadError creates a new DownloadError.
func NewDownloadError(videoID VideoID, op string, err error) *DownloadError {
	return &DownloadError{
		VideoID: videoID,
		Op:      op,
		Err:     err,
	}
}
