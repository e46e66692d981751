// Package util provides small string helpers for the text command protocol.
package util

import (
	"errors"
	"strings"
)

// ErrUnterminatedQuote is returned when a command line leaves a quote open.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// SplitCommandLine splits a text command such as
//
//	:EFFECT: 3 "oil slick" 2.5 straightLineSpeed=-40
//
// into its command and arguments. Arguments are separated by whitespace;
// double quotes group words and "" inside quotes is a literal quote.
func SplitCommandLine(line string) (string, []string, error) {
	var (
		fields  []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	flush := func() {
		if started {
			fields = append(fields, cur.String())
			cur.Reset()
			started = false
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"' && inQuote && i+1 < len(line) && line[i+1] == '"':
			cur.WriteByte('"')
			i++
		case c == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			flush()
		default:
			cur.WriteByte(c)
			started = true
		}
	}
	if inQuote {
		return "", nil, ErrUnterminatedQuote
	}
	flush()

	if len(fields) == 0 {
		return "", nil, nil
	}
	return fields[0], fields[1:], nil
}
