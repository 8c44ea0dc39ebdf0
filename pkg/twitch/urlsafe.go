package twitch

import "strings"

// urlSafeTable lists the only characters URLSafe escapes. Each maps to the
// upper-case hex of its own ASCII code, so '$' is %24.
var urlSafeTable = map[rune]string{
	'!':  "%21",
	'"':  "%22",
	'$':  "%24",
	'\'': "%27",
	'(':  "%28",
	')':  "%29",
	'*':  "%2A",
	'+':  "%2B",
	',':  "%2C",
	'-':  "%2D",
	'.':  "%2E",
	'/':  "%2F",
	':':  "%3A",
	';':  "%3B",
	'@':  "%40",
	'[':  "%5B",
	'\\': "%5C",
	']':  "%5D",
	'{':  "%7B",
	'}':  "%7D",
}

// URLSafe percent-encodes the reserved characters that occur in playback token
// JSON. Everything else, including '&', '=' and spaces, passes through unchanged.
// This is not a general URL encoder.
func URLSafe(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, ch := range input {
		if esc, ok := urlSafeTable[ch]; ok {
			b.WriteString(esc)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
