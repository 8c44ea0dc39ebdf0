package domain

import "strings"

// VideoID is the numeric identifier of a Twitch VOD.
type VideoID string

// String returns the string representation of the VideoID.
func (id VideoID) String() string {
	return string(id)
}

// PlaybackAuthorization is the signed token pair that unlocks one manifest fetch.
// It expires quickly on the platform side and is never persisted.
type PlaybackAuthorization struct {
	Signature string
	Value     string
}

// Valid reports whether both halves of the authorization are present.
func (a *PlaybackAuthorization) Valid() bool {
	return a != nil && a.Signature != "" && a.Value != ""
}

// ConversionRequest describes a single ffmpeg run fed from a patched manifest.
type ConversionRequest struct {
	// Manifest is the full HLS playlist written to the converter's stdin.
	Manifest []byte
	// InputArgs are placed before "-i pipe:0".
	InputArgs []string
	// OutputArgs are placed between the input and the destination.
	OutputArgs []string
	// Destination is the output file; its extension selects the container.
	Destination string
}

// SplitArgs splits a caller-supplied ffmpeg argument fragment on whitespace.
func SplitArgs(fragment string) []string {
	return strings.Fields(fragment)
}
