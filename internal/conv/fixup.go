package conv

import (
	"regexp"
	"strings"
	"time"

	"github.com/nuqql/nuqql/internal/history"
)

// Per-protocol message post-processing. These are string transforms for
// known markup quirks of specific protocol families, applied once before
// a message is routed to a conversation; they are not part of the generic
// wire parser.

var bodyRe = regexp.MustCompile(`(?is)^<body[^>]*>(.*)</body>$`)

// FixupSender normalizes a sender identifier for the given protocol:
// trailing colons are stripped, and xmpp-family identifiers lose their
// resource suffix.
func FixupSender(protocol, sender string) string {
	sender = strings.TrimSuffix(sender, ":")
	if protocol == "xmpp" || protocol == "jabber" {
		if i := strings.Index(sender, "/"); i >= 0 {
			sender = sender[:i]
		}
	}
	return sender
}

// FixupText strips the whole-message HTML body wrapper some matrix
// bridges produce.
func FixupText(protocol, text string) string {
	if protocol != "matrix" {
		return text
	}
	if sub := bodyRe.FindStringSubmatch(text); sub != nil {
		return sub[1]
	}
	return text
}

func historyLoadError(err error) *history.Message {
	return history.NewMessage(time.Now(), history.EventSender,
		"history load failed: "+err.Error(), false)
}
