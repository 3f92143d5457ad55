// Package irc builds and parses the subset of the Twitch IRC dialect spoken over
// the chat relay WebSocket.
package irc

import (
	"regexp"
	"strings"
)

// Command names the client cares about.
const (
	CommandPing      = "PING"
	CommandPong      = "PONG"
	CommandPrivmsg   = "PRIVMSG"
	CommandNotice    = "NOTICE"
	CommandReconnect = "RECONNECT"
	CommandWelcome   = "001"
)

// Pass returns the authentication line. A token already carrying the
// "oauth:" prefix is accepted as is.
func Pass(token string) string {
	return "PASS oauth:" + strings.TrimPrefix(token, "oauth:")
}

// Nick returns the identification line.
func Nick(user string) string {
	return "NICK " + user
}

// Join returns the line joining channel.
func Join(channel string) string {
	return "JOIN #" + channel
}

// Part returns the line leaving channel.
func Part(channel string) string {
	return "PART #" + channel
}

// Privmsg returns a chat line for channel. Text is sent verbatim.
func Privmsg(channel, text string) string {
	return "PRIVMSG #" + channel + " :" + text
}

// Pong answers a PING carrying arg.
func Pong(arg string) string {
	return "PONG :" + arg
}

// NormalizeChannel strips whitespace and a leading '#' and lower-cases the name.
func NormalizeChannel(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "#")
	return strings.ToLower(strings.TrimSpace(name))
}

// SplitLines splits a transport frame into protocol lines. The relay may batch
// several CRLF-terminated lines into one frame.
func SplitLines(frame string) []string {
	raw := strings.Split(frame, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// PrivmsgLine is a parsed inbound chat line.
type PrivmsgLine struct {
	Sender  string
	Channel string
	Text    string
}

var privmsgRe = regexp.MustCompile(`^(?:@\S* )?:([^!\s]+)![^@\s]*@\S*\.tmi\.twitch\.tv PRIVMSG #(\S*) :(.*)$`)

// ParsePrivmsg extracts sender, channel and text from a PRIVMSG line. Lines not
// containing PRIVMSG, or not matching the relay's prefix format, are rejected.
func ParsePrivmsg(line string) (PrivmsgLine, bool) {
	if !strings.Contains(line, CommandPrivmsg) {
		return PrivmsgLine{}, false
	}
	m := privmsgRe.FindStringSubmatch(line)
	if m == nil {
		return PrivmsgLine{}, false
	}
	return PrivmsgLine{Sender: m[1], Channel: strings.ToLower(m[2]), Text: m[3]}, true
}

// Message is a loosely parsed protocol line.
type Message struct {
	Tags     string
	Prefix   string
	Command  string
	Params   []string
	Trailing string
	Raw      string
}

// Parse splits a line into tags, prefix, command, middle params and trailing
// text. It never fails; unknown shapes simply yield an empty Command.
func Parse(line string) Message {
	msg := Message{Raw: line}
	rest := line

	if strings.HasPrefix(rest, "@") {
		tags, after, _ := strings.Cut(rest, " ")
		msg.Tags = tags[1:]
		rest = after
	}
	if strings.HasPrefix(rest, ":") {
		prefix, after, _ := strings.Cut(rest, " ")
		msg.Prefix = prefix[1:]
		rest = after
	}

	head, trailing, hasTrailing := strings.Cut(rest, " :")
	if hasTrailing {
		msg.Trailing = trailing
	} else if strings.HasPrefix(head, ":") {
		msg.Trailing = head[1:]
		head = ""
	}

	fields := strings.Fields(head)
	if len(fields) > 0 {
		msg.Command = strings.ToUpper(fields[0])
		msg.Params = fields[1:]
	}
	return msg
}

var authFailures = []string{
	"Login authentication failed",
	"Improperly formatted auth",
}

// IsAuthFailure reports whether msg is the relay rejecting our credentials.
func IsAuthFailure(msg Message) bool {
	if msg.Command != CommandNotice {
		return false
	}
	for _, s := range authFailures {
		if strings.Contains(msg.Trailing, s) {
			return true
		}
	}
	return false
}
