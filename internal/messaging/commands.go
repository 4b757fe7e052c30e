package messaging

import (
	"regexp"
	"strings"
)

// Command actions understood over SMS.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// HelpText is sent back when an inbound SMS doesn't match the grammar.
const HelpText = "Sorry, we didn't understand that. Reply ACCEPT <booking code> to accept or DECLINE <booking code> to decline, e.g. ACCEPT RMM202609-0012."

// Command is a parsed therapist SMS reply.
type Command struct {
	Action string
	Code   string
}

var commandRe = regexp.MustCompile(`^(ACCEPT|DECLINE|A|D)\s+(RMM\d{6}-\d{4})$`)

// ParseCommand parses a free-text SMS body against the fixed grammar:
// ACCEPT/DECLINE (or single-letter A/D) followed by a booking code.
// Matching is case-insensitive with whitespace normalized.
func ParseCommand(body string) (*Command, bool) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(body), " "))
	m := commandRe.FindStringSubmatch(normalized)
	if m == nil {
		return nil, false
	}

	action := ActionDecline
	if m[1] == "ACCEPT" || m[1] == "A" {
		action = ActionAccept
	}
	return &Command{Action: action, Code: m[2]}, true
}
