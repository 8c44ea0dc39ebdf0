package twitch

import (
	"bytes"
	"fmt"
	"io"
)

var (
	hiddenRendition   = []byte("AUTOSELECT=NO,DEFAULT=NO")
	selectedRendition = []byte("AUTOSELECT=YES,DEFAULT=YES")
)

// PatchManifest reads the whole playlist and marks every alternate rendition
// as autoselect/default, otherwise ffmpeg ignores them. It is a plain text
// substitution; the playlist is not parsed.
func PatchManifest(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return bytes.ReplaceAll(data, hiddenRendition, selectedRendition), nil
}
