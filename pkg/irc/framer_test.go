// Copyright 2024-2026 Aiku AI

package irc

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"
)

func collectSplit(text string, maxBytes int) []string {
	var out []string
	for frag := range SplitForTransmission(text, maxBytes) {
		out = append(out, frag)
	}
	return out
}

func TestSplitForTransmission(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		text     string
		maxBytes int
		want     []string
	}{
		{
			name:     "empty",
			text:     "",
			maxBytes: 10,
			want:     nil,
		},
		{
			name:     "fits",
			text:     "hello",
			maxBytes: 10,
			want:     []string{"hello"},
		},
		{
			name:     "exact",
			text:     "hello",
			maxBytes: 5,
			want:     []string{"hello"},
		},
		{
			name:     "ascii split",
			text:     "hello world",
			maxBytes: 5,
			want:     []string{"hello", " worl", "d"},
		},
		{
			name:     "multibyte moved to next fragment",
			text:     "abcé",
			maxBytes: 4,
			want:     []string{"abc", "é"},
		},
		{
			name:     "rune wider than limit splits anyway",
			text:     "ち",
			maxBytes: 2,
			want:     []string{"\xe3\x81", "\xa1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := collectSplit(tt.text, tt.maxBytes)
			if !slices.Equal(got, tt.want) {
				t.Errorf("SplitForTransmission(%q, %d) = %q, want %q", tt.text, tt.maxBytes, got, tt.want)
			}
		})
	}
}

func TestSplitForTransmissionRoundTrip(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"",
		"short",
		strings.Repeat("a", 600),
		strings.Repeat("日本語テキスト", 50),
		"mixed ボディ with ascii and ユニコード " + strings.Repeat("x", 500),
	}
	for _, input := range inputs {
		for _, limit := range []int{1, 3, 7, 100, 495} {
			frags := collectSplit(input, limit)
			if got := strings.Join(frags, ""); got != input {
				t.Fatalf("concat of fragments (limit %d) does not reproduce input: got %d bytes, want %d", limit, len(got), len(input))
			}
			for i, frag := range frags {
				if len(frag) > limit {
					t.Errorf("fragment %d exceeds limit %d: %d bytes", i, limit, len(frag))
				}
			}
		}
	}
}

func TestSplitForTransmissionRestartable(t *testing.T) {
	t.Parallel()
	seq := SplitForTransmission("hello world", 4)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Errorf("second iteration differs: got %q then %q", first, second)
	}
}

func TestMaxPayload(t *testing.T) {
	t.Parallel()
	if got := MaxPayload("#test"); got != 495 {
		t.Errorf("MaxPayload(#test) = %d, want 495", got)
	}
}

func TestDecodeLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		raw          []byte
		want         string
		wantDegraded bool
	}{
		{
			name:         "clean utf8",
			raw:          []byte("héllo 日本"),
			want:         "héllo 日本",
			wantDegraded: false,
		},
		{
			name:         "empty",
			raw:          nil,
			want:         "",
			wantDegraded: false,
		},
		{
			name:         "windows-1252 fallback",
			raw:          []byte{'c', 'a', 'f', 0xe9}, // café in cp1252
			want:         "café",
			wantDegraded: true,
		},
		{
			name:         "smart quote fallback",
			raw:          []byte{0x93, 'h', 'i', 0x94},
			want:         "“hi”",
			wantDegraded: true,
		},
		{
			name:         "undecodable gets replacement",
			raw:          []byte{'x', 0x81, 'y'}, // 0x81 unassigned in cp1252
			want:         "x�y",
			wantDegraded: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, degraded := DecodeLine(tt.raw)
			if got != tt.want || degraded != tt.wantDegraded {
				t.Errorf("DecodeLine(%q) = (%q, %v), want (%q, %v)", tt.raw, got, degraded, tt.want, tt.wantDegraded)
			}
			if !utf8.ValidString(got) {
				t.Errorf("DecodeLine(%q) returned invalid UTF-8", tt.raw)
			}
		})
	}
}

func TestEncodeLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		command string
		params  []string
		want    string
	}{
		{
			name:    "bare command",
			command: "QUIT",
			params:  nil,
			want:    "QUIT\r\n",
		},
		{
			name:    "single word params",
			command: "JOIN",
			params:  []string{"#test"},
			want:    "JOIN #test\r\n",
		},
		{
			name:    "trailing with spaces",
			command: "PRIVMSG",
			params:  []string{"#test", "hello there"},
			want:    "PRIVMSG #test :hello there\r\n",
		},
		{
			name:    "trailing empty",
			command: "PRIVMSG",
			params:  []string{"#test", ""},
			want:    "PRIVMSG #test :\r\n",
		},
		{
			name:    "trailing starts with colon",
			command: "PRIVMSG",
			params:  []string{"#test", ":)"},
			want:    "PRIVMSG #test ::)\r\n",
		},
		{
			name:    "single word trailing not prefixed",
			command: "PRIVMSG",
			params:  []string{"#test", "hi"},
			want:    "PRIVMSG #test hi\r\n",
		},
		{
			name:    "registration",
			command: "USER",
			params:  []string{"bot", "0", "*", "Relay Bot"},
			want:    "USER bot 0 * :Relay Bot\r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := EncodeLine(tt.command, tt.params...); got != tt.want {
				t.Errorf("EncodeLine(%q, %q) = %q, want %q", tt.command, tt.params, got, tt.want)
			}
		})
	}
}

func TestParseChatLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		line   string
		wantOK bool
		want   Event
	}{
		{
			name:   "ping",
			line:   "PING :irc.example.com",
			wantOK: true,
			want:   Event{Kind: EventPing},
		},
		{
			name:   "channel message",
			line:   ":alice!~a@host PRIVMSG #test :hello world",
			wantOK: true,
			want:   Event{Kind: EventChat, Sender: "alice", Text: "hello world"},
		},
		{
			name:   "channel case insensitive",
			line:   ":alice!~a@host PRIVMSG #TEST :hi",
			wantOK: true,
			want:   Event{Kind: EventChat, Sender: "alice", Text: "hi"},
		},
		{
			name:   "ctcp action",
			line:   ":alice!~a@host PRIVMSG #test :\x01ACTION waves\x01",
			wantOK: true,
			want:   Event{Kind: EventChat, Sender: "alice", Text: "* waves"},
		},
		{
			name:   "color codes stripped",
			line:   ":alice!~a@host PRIVMSG #test :\x034,12colored\x03 \x02bold\x02 plain",
			wantOK: true,
			want:   Event{Kind: EventChat, Sender: "alice", Text: "colored bold plain"},
		},
		{
			name:   "other target ignored",
			line:   ":alice!~a@host PRIVMSG #other :hello",
			wantOK: false,
		},
		{
			name:   "direct message ignored",
			line:   ":alice!~a@host PRIVMSG relaybot :psst",
			wantOK: false,
		},
		{
			name:   "other command ignored",
			line:   ":irc.example.com 372 relaybot :- motd line",
			wantOK: false,
		},
		{
			name:   "join ignored",
			line:   ":alice!~a@host JOIN #test",
			wantOK: false,
		},
		{
			name:   "malformed missing payload",
			line:   ":alice!~a@host PRIVMSG",
			wantOK: false,
		},
		{
			name:   "empty",
			line:   "",
			wantOK: false,
		},
		{
			name:   "garbage",
			line:   "not a protocol line at all",
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseChatLine(tt.line, "#test")
			if ok != tt.wantOK {
				t.Fatalf("ParseChatLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseChatLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}
