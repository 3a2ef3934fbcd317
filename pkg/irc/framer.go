// Copyright 2024-2026 Aiku AI

package irc

import (
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// maxLineLength is the practical per-line ceiling on the wire.
// privmsgOverhead covers the PRIVMSG command token, separators, the
// trailing-argument colon and the CRLF terminator.
const (
	maxLineLength   = 512
	privmsgOverhead = 12
)

// DegradedMarker prefixes relayed text whose bytes failed primary
// decoding, so readers on the other side can tell it was re-interpreted.
const DegradedMarker = "[?] "

// MaxPayload returns the largest message payload that fits in one
// PRIVMSG to the given channel.
func MaxPayload(channel string) int {
	return maxLineLength - privmsgOverhead - len(channel)
}

// SplitForTransmission splits text into the fewest fragments whose
// UTF-8 byte length each fits maxBytes. Fragments concatenate back to
// exactly the input. Splits happen on rune boundaries: a multi-byte
// codepoint that would straddle the limit is moved whole to the next
// fragment. A rune wider than maxBytes is split anyway rather than
// looping forever. The sequence is lazy and restartable.
func SplitForTransmission(text string, maxBytes int) iter.Seq[string] {
	return func(yield func(string) bool) {
		if maxBytes < 1 {
			if text != "" {
				yield(text)
			}
			return
		}
		rest := text
		for len(rest) > maxBytes {
			cut := maxBytes
			for cut > 0 && !utf8.RuneStart(rest[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxBytes
			}
			if !yield(rest[:cut]) {
				return
			}
			rest = rest[cut:]
		}
		if rest != "" {
			yield(rest)
		}
	}
}

// win1252Undefined are the code points Windows-1252 leaves unassigned.
// Their presence means the fallback decode cannot be trusted either.
var win1252Undefined = []byte{0x81, 0x8d, 0x8f, 0x90, 0x9d}

// DecodeLine decodes raw line bytes. UTF-8 is tried first, then
// Windows-1252 as the legacy fallback; as a last resort undecodable
// bytes become replacement characters. The second return value reports
// whether the result is degraded (anything but clean UTF-8). It never
// fails.
func DecodeLine(raw []byte) (string, bool) {
	if utf8.Valid(raw) {
		return string(raw), false
	}
	if !containsAny(raw, win1252Undefined) {
		if decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil {
			return string(decoded), true
		}
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), true
}

func containsAny(b []byte, set []byte) bool {
	for _, c := range b {
		for _, s := range set {
			if c == s {
				return true
			}
		}
	}
	return false
}

// EncodeLine assembles one outbound protocol line: the command token,
// space-joined arguments, and CRLF. The final argument gets a ":" prefix
// if it is empty, already starts with ":", or contains whitespace.
func EncodeLine(command string, params ...string) string {
	var b strings.Builder
	b.WriteString(command)
	for i, p := range params {
		b.WriteByte(' ')
		if i == len(params)-1 && needsTrailing(p) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}
	b.WriteString("\r\n")
	return b.String()
}

func needsTrailing(p string) bool {
	return p == "" || strings.HasPrefix(p, ":") || strings.ContainsAny(p, " \t")
}

// EventKind distinguishes the line shapes the receive loop acts on.
type EventKind int

const (
	// EventPing is a server keepalive that must be answered.
	EventPing EventKind = iota
	// EventChat is a message posted to the configured channel.
	EventChat
)

// Event is the parsed form of one recognized inbound line.
type Event struct {
	Kind   EventKind
	Sender string
	Text   string
}

const ctcpActionPrefix = "\x01ACTION "

// mIRC color escapes: \x03 followed by an optional fg and ,bg pair.
var colorCode = regexp.MustCompile(`\x03\d{0,2}(?:,\d{1,2})?`)

// ParseChatLine parses one inbound line into an event. It recognizes the
// PING keepalive and PRIVMSGs addressed to the given channel; a CTCP
// ACTION payload is rewritten as "* rest". Color escapes and control
// characters are stripped from the payload. Anything else, including
// malformed lines and messages for other targets, returns false.
func ParseChatLine(line, channel string) (Event, bool) {
	if strings.HasPrefix(line, "PING") {
		return Event{Kind: EventPing}, true
	}
	rest, ok := strings.CutPrefix(line, ":")
	if !ok {
		return Event{}, false
	}
	prefix, rest, ok := strings.Cut(rest, " ")
	if !ok {
		return Event{}, false
	}
	command, rest, ok := strings.Cut(rest, " ")
	if !ok || command != "PRIVMSG" {
		return Event{}, false
	}
	target, payload, ok := strings.Cut(rest, " ")
	if !ok || !strings.EqualFold(target, channel) {
		return Event{}, false
	}
	payload = strings.TrimPrefix(payload, ":")
	if inner, found := strings.CutPrefix(payload, ctcpActionPrefix); found {
		payload = "* " + strings.TrimSuffix(inner, "\x01")
	}
	sender, _, _ := strings.Cut(prefix, "!")
	return Event{
		Kind:   EventChat,
		Sender: sender,
		Text:   stripFormatting(payload),
	}, true
}

// stripFormatting removes mIRC color escapes and remaining control
// characters from a payload.
func stripFormatting(s string) string {
	s = colorCode.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
