// Package history implements per-conversation persistence: an append-only
// log file plus a sibling "lastread" marker file, both holding records of
// the form "<unix_ts> <IN|OUT> <sender> <text>" with CRLF termination.
package history

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nuqql/nuqql/internal/paths"
)

// OwnSender is the sender literal written for OUT records.
const OwnSender = "you"

// EventSender marks synthetic log entries (date change, restart).
const EventSender = "<event>"

// Kind distinguishes real messages from synthetic markers.
type Kind int

const (
	KindNormal Kind = iota
	KindDateChange
	KindRestart
)

// Message is one entry of a conversation log.
type Message struct {
	Kind   Kind
	Time   time.Time
	Sender string
	Text   string
	Own    bool
	IsRead bool
}

// NewMessage creates a normal log message.
func NewMessage(ts time.Time, sender, text string, own bool) *Message {
	m := &Message{Time: ts, Sender: sender, Text: text, Own: own}
	if own {
		m.IsRead = true
	}
	return m
}

// DateChange creates the synthetic marker inserted between two records on
// different calendar days. Always read.
func DateChange(ts time.Time) *Message {
	return &Message{
		Kind:   KindDateChange,
		Time:   ts,
		Sender: EventSender,
		Text:   "Day changed to " + ts.Format("2006-01-02"),
		IsRead: true,
	}
}

// Restart creates the synthetic marker appended after replaying a
// non-empty log. Always read.
func Restart(now time.Time) *Message {
	return &Message{
		Kind:   KindRestart,
		Time:   now,
		Sender: EventSender,
		Text:   "Conversation restarted at " + now.Format("2006-01-02 15:04:05"),
		IsRead: true,
	}
}

// (?s) lets the text capture span the embedded newlines of multi-line
// messages, which live inside a single CRLF-terminated record.
var recordRe = regexp.MustCompile(`(?s)^(\d+) (IN|OUT) (\S+) (.*)$`)

// formatRecord renders one record line including the CRLF terminator.
// OUT records force the sender to the fixed own-sender literal.
func formatRecord(m *Message) string {
	dir := "IN"
	sender := m.Sender
	if m.Own {
		dir = "OUT"
		sender = OwnSender
	}
	return fmt.Sprintf("%d %s %s %s\r\n", m.Time.Unix(), dir, sender, m.Text)
}

// parseRecord parses one record line (terminator stripped). Returns nil if
// the line is not a record start (a continuation of a multi-line message).
func parseRecord(line string) *Message {
	sub := recordRe.FindStringSubmatch(line)
	if sub == nil {
		return nil
	}
	ts, err := strconv.ParseInt(sub[1], 10, 64)
	if err != nil {
		return nil
	}
	return &Message{
		Time:   time.Unix(ts, 0),
		Sender: sub[3],
		Text:   sub[4],
		Own:    sub[2] == "OUT",
	}
}

// sameRecord reports whether two messages would serialize to the same
// record. Used to locate the lastread boundary by field equality.
func sameRecord(a, b *Message) bool {
	return a.Time.Unix() == b.Time.Unix() && a.Own == b.Own &&
		a.Sender == b.Sender && a.Text == b.Text
}

// Store persists one conversation's history.
type Store struct {
	histPath     string
	lastReadPath string
}

// NewStore creates a store for the given conversation, ensuring its state
// directory exists.
func NewStore(backend, accountID, name string) (*Store, error) {
	if err := paths.EnsureConversationDir(backend, accountID, name); err != nil {
		return nil, err
	}
	return &Store{
		histPath:     paths.HistoryPath(backend, accountID, name),
		lastReadPath: paths.LastReadPath(backend, accountID, name),
	}, nil
}

// Append writes one record to the history file. Own messages also update
// the lastread marker: sending implies having read everything before it.
func (s *Store) Append(m *Message) error {
	f, err := os.OpenFile(s.histPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	_, werr := f.WriteString(formatRecord(m))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("append history: %w", werr)
	}
	if m.Own {
		return s.SetLastRead(m)
	}
	return nil
}

// SetLastRead overwrites the lastread marker with the given message.
func (s *Store) SetLastRead(m *Message) error {
	tmp := s.lastReadPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(formatRecord(m)), 0600); err != nil {
		return fmt.Errorf("write lastread: %w", err)
	}
	if err := os.Rename(tmp, s.lastReadPath); err != nil {
		return fmt.Errorf("replace lastread: %w", err)
	}
	return nil
}

// LastRead returns the lastread marker, or nil if none is recorded.
func (s *Store) LastRead() (*Message, error) {
	data, err := os.ReadFile(s.lastReadPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	line := strings.TrimRight(string(data), "\r\n")
	return parseRecord(line), nil
}

// seekStep bounds how many extra bytes a backward record search reads per
// iteration.
const seekStep = 128

// ReadLastRecord returns the final record of the history file without
// scanning the whole file: it seeks near the end and walks backward in
// fixed-size steps until a record boundary is found. Returns nil for an
// empty or absent file.
func (s *Store) ReadLastRecord() (*Message, error) {
	f, err := os.Open(s.histPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return lastRecord(f, info.Size())
}

// lastRecord implements the backward search over any random-access source.
func lastRecord(r io.ReaderAt, size int64) (*Message, error) {
	if size == 0 {
		return nil, nil
	}

	pos := size
	var tail []byte
	for {
		step := int64(seekStep)
		if step > pos {
			step = pos
		}
		buf := make([]byte, step)
		if _, err := r.ReadAt(buf, pos-step); err != nil {
			return nil, err
		}
		pos -= step
		tail = append(buf, tail...)

		if m := lastRecordIn(tail, pos == 0); m != nil {
			return m, nil
		}
		if pos == 0 {
			return nil, nil
		}
	}
}

// lastRecordIn scans a byte suffix of the file for the final complete
// record. Lines that do not parse are continuations of a preceding
// multi-line record; unless the suffix starts at the file beginning the
// first line may be truncated and is never trusted as a record start.
func lastRecordIn(tail []byte, atStart bool) *Message {
	lines := strings.Split(strings.TrimRight(string(tail), "\r\n"), "\r\n")
	first := 0
	if !atStart {
		first = 1
	}
	for i := len(lines) - 1; i >= first; i-- {
		if m := parseRecord(lines[i]); m != nil {
			for _, cont := range lines[i+1:] {
				m.Text += "\n" + cont
			}
			return m
		}
	}
	return nil
}

// Load replays the whole history file into log messages. The lastread
// marker (matched by exact field equality) decides the read/unread
// boundary; a date-change marker is inserted whenever two consecutive
// records fall on different calendar days, and a restart marker is
// appended after a non-empty replay. A missing file means no history.
func (s *Store) Load() ([]*Message, error) {
	f, err := os.Open(s.histPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	lastRead, err := s.LastRead()
	if err != nil {
		return nil, err
	}

	var records []*Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if m := parseRecord(line); m != nil {
			records = append(records, m)
		} else if len(records) > 0 {
			// Continuation of a multi-line message.
			last := records[len(records)-1]
			last.Text += "\n" + line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	read := lastRead != nil
	var out []*Message
	for i, m := range records {
		if i > 0 && !sameDay(records[i-1].Time, m.Time) {
			out = append(out, DateChange(m.Time))
		}
		m.IsRead = read || m.Own
		out = append(out, m)
		if read && lastRead != nil && sameRecord(m, lastRead) {
			// Boundary passed: everything after is unread.
			read = false
		}
	}
	out = append(out, Restart(time.Now()))
	return out, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
