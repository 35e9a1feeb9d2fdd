// Package proto implements the backend wire protocol codec: decoding of
// CRLF-framed event lines into typed events and encoding of outbound
// commands. The codec is stateless.
package proto

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Event is a decoded backend protocol message.
type Event interface {
	event()
}

// Error is an "error:" line from a backend.
type Error struct {
	Text string
}

// Info is an "info:" line from a backend.
type Info struct {
	Text string
}

// Account reports the existence of an account on a backend.
type Account struct {
	ID       string
	Alias    string
	Protocol string
	User     string
	Status   string
}

// Status reports an account's own presence status.
type Status struct {
	AccountID string
	Status    string
}

// Buddy reports one roster entry of an account.
type Buddy struct {
	AccountID string
	Status    string
	Name      string
	Alias     string
}

// Message is an inbound "message:" or "collect:" line.
type Message struct {
	AccountID string
	Dest      string
	Time      time.Time
	Sender    string
	Text      string
	// Collected is true for bulk-replayed history ("collect:").
	Collected bool
}

// ChatList announces a group chat the account is in or invited to.
type ChatList struct {
	AccountID string
	Chat      string
	Alias     string
	Nick      string
}

// ChatUser announces one member of a group chat.
type ChatUser struct {
	AccountID string
	Chat      string
	Nick      string
	Alias     string
	Status    string
}

// ChatMsg is an inbound group chat message.
type ChatMsg struct {
	AccountID string
	Chat      string
	Time      time.Time
	Sender    string
	Text      string
}

// ParseError carries a line the codec could not decode.
type ParseError struct {
	Time   time.Time
	Sender string
	Text   string
}

func (Error) event()      {}
func (Info) event()       {}
func (Account) event()    {}
func (Status) event()     {}
func (Buddy) event()      {}
func (Message) event()    {}
func (ChatList) event()   {}
func (ChatUser) event()   {}
func (ChatMsg) event()    {}
func (ParseError) event() {}

var brRe = regexp.MustCompile(`(?i)<br */?>`)

// DecodeText converts wire message text to display text: <br> and <br/>
// (any case) become newlines, then HTML entities are unescaped.
func DecodeText(s string) string {
	return html.UnescapeString(brRe.ReplaceAllString(s, "\n"))
}

// EncodeText is the inverse of DecodeText for outbound messages.
func EncodeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br/>")
}

// NormalizeStatus maps backend status strings to the short codes used
// throughout the client. Unknown statuses pass through verbatim.
func NormalizeStatus(s string) string {
	switch strings.ToLower(s) {
	case "available", "online", "on":
		return "on"
	case "away", "afk":
		return "afk"
	case "offline", "off":
		return "off"
	case "group_chat", "grp":
		return "grp"
	case "group_chat_invite", "grp_invite":
		return "grp_invite"
	}
	return s
}

// infoSuppressPrefix marks periodic buddy-refresh acknowledgements that
// would otherwise spam the backend conversation.
const infoSuppressPrefix = "got buddies for account "

// Decode parses one line (framing terminator already stripped) from the
// named backend. It returns nil for suppressed lines. Unparseable lines
// yield a ParseError event, never an error.
func Decode(backend, line string) Event {
	prefix, rest, found := strings.Cut(line, " ")
	if !found {
		prefix = line
		rest = ""
	}

	switch prefix {
	case "error:":
		return Error{Text: rest}
	case "info:":
		if strings.HasPrefix(rest, infoSuppressPrefix) {
			return nil
		}
		return Info{Text: rest}
	case "account:":
		fields := strings.Fields(rest)
		if len(fields) != 5 {
			return parseError(backend, line)
		}
		return Account{
			ID:       fields[0],
			Alias:    fields[1],
			Protocol: strings.ToLower(fields[2]),
			User:     fields[3],
			Status:   NormalizeStatus(fields[4]),
		}
	case "status:":
		// status: account <id> status: <status>
		fields := strings.Fields(rest)
		if len(fields) != 4 || fields[0] != "account" || fields[2] != "status:" {
			return parseError(backend, line)
		}
		return Status{AccountID: fields[1], Status: NormalizeStatus(fields[3])}
	case "buddy:":
		// buddy: <id> status: <status> name: <name> alias: <alias>
		fields := strings.Fields(rest)
		if len(fields) < 6 || fields[1] != "status:" || fields[3] != "name:" || fields[5] != "alias:" {
			return parseError(backend, line)
		}
		b := Buddy{
			AccountID: fields[0],
			Status:    NormalizeStatus(fields[2]),
			Name:      fields[4],
		}
		if len(fields) >= 7 {
			b.Alias = fields[6]
		} else {
			// Alias omitted by some backends.
			b.Alias = b.Name
		}
		return b
	case "message:", "collect:":
		fields := strings.SplitN(rest, " ", 5)
		if len(fields) != 5 {
			return parseError(backend, line)
		}
		ts, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return parseError(backend, line)
		}
		return Message{
			AccountID: fields[0],
			Dest:      fields[1],
			Time:      time.Unix(ts, 0),
			Sender:    fields[3],
			Text:      DecodeText(fields[4]),
			Collected: prefix == "collect:",
		}
	case "chat:":
		return decodeChat(backend, line, rest)
	}
	return parseError(backend, line)
}

func decodeChat(backend, line, rest string) Event {
	sub, rest, found := strings.Cut(rest, " ")
	if !found {
		return parseError(backend, line)
	}
	switch sub {
	case "list:":
		fields := strings.Fields(rest)
		if len(fields) != 4 {
			return parseError(backend, line)
		}
		return ChatList{AccountID: fields[0], Chat: fields[1], Alias: fields[2], Nick: fields[3]}
	case "user:":
		fields := strings.Fields(rest)
		if len(fields) != 5 {
			return parseError(backend, line)
		}
		return ChatUser{
			AccountID: fields[0],
			Chat:      fields[1],
			Nick:      fields[2],
			Alias:     fields[3],
			Status:    NormalizeStatus(fields[4]),
		}
	case "msg:":
		fields := strings.SplitN(rest, " ", 5)
		if len(fields) != 5 {
			return parseError(backend, line)
		}
		ts, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return parseError(backend, line)
		}
		return ChatMsg{
			AccountID: fields[0],
			Chat:      fields[1],
			Time:      time.Unix(ts, 0),
			Sender:    fields[3],
			Text:      DecodeText(fields[4]),
		}
	}
	return parseError(backend, line)
}

func parseError(backend, line string) ParseError {
	return ParseError{
		Time:   time.Now(),
		Sender: backend,
		Text:   "Error parsing message: " + line,
	}
}

// Outbound command encoders. Commands are returned without the CRLF
// framing terminator; the session appends it on send.

// SendMsg encodes a direct message to a buddy.
func SendMsg(accountID, buddy, text string) string {
	return fmt.Sprintf("account %s send %s %s", accountID, buddy, EncodeText(text))
}

// SendChatMsg encodes a message to a group chat.
func SendChatMsg(accountID, chat, text string) string {
	return fmt.Sprintf("account %s chat send %s %s", accountID, chat, EncodeText(text))
}

// ChatJoin encodes a group chat join request.
func ChatJoin(accountID, chat string) string {
	return fmt.Sprintf("account %s chat join %s", accountID, chat)
}

// ChatPart encodes leaving a group chat.
func ChatPart(accountID, chat string) string {
	return fmt.Sprintf("account %s chat part %s", accountID, chat)
}

// ChatUsers encodes a request for a group chat's member list.
func ChatUsers(accountID, chat string) string {
	return fmt.Sprintf("account %s chat users %s", accountID, chat)
}

// ChatInvite encodes inviting a user into a group chat.
func ChatInvite(accountID, chat, user string) string {
	return fmt.Sprintf("account %s chat invite %s %s", accountID, chat, user)
}

// Collect encodes a request for the full message backlog of an account.
func Collect(accountID string) string {
	return fmt.Sprintf("account %s collect 0", accountID)
}

// Buddies encodes a buddy list request.
func Buddies(accountID string) string {
	return fmt.Sprintf("account %s buddies", accountID)
}

// AccountList encodes a request for all accounts of a backend.
func AccountList() string {
	return "account list"
}

// StatusSet encodes setting an account's presence status.
func StatusSet(accountID, status string) string {
	return fmt.Sprintf("account %s status set %s", accountID, status)
}

// StatusGet encodes querying an account's presence status.
func StatusGet(accountID string) string {
	return fmt.Sprintf("account %s status get", accountID)
}
