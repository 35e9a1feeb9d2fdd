package ui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nuqql/nuqql/internal/history"
)

func testLog(n int) []*history.Message {
	base := time.Unix(1700000000, 0)
	var log []*history.Message
	for i := 0; i < n; i++ {
		log = append(log, history.NewMessage(base.Add(time.Duration(i)*time.Second),
			"bob", fmt.Sprintf("msg%02d", i), false))
	}
	return log
}

func TestRenderTail(t *testing.T) {
	v := NewViewport(80, 3)
	log := testLog(10)
	lines := v.Render(log)

	// Tail mode renders just enough entries to fill the height.
	if len(lines) != 3 {
		t.Fatalf("rendered %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[len(lines)-1].Text, "msg09") {
		t.Errorf("last line = %q, want the newest message", lines[len(lines)-1].Text)
	}
	if v.Cursor() != len(lines)-1 {
		t.Errorf("cursor = %d, want last line", v.Cursor())
	}
}

func TestRenderMarksRead(t *testing.T) {
	v := NewViewport(80, 5)
	log := testLog(3)
	lines := v.Render(log)

	// The render reports the pre-render read state for styling.
	for _, ln := range lines {
		if ln.IsRead {
			t.Errorf("line %q styled read on first render", ln.Text)
		}
	}
	for _, m := range log {
		if !m.IsRead {
			t.Errorf("message %q not marked read after render", m.Text)
		}
	}
	for _, ln := range v.Render(log) {
		if !ln.IsRead {
			t.Errorf("line %q styled unread on second render", ln.Text)
		}
	}
}

func TestResetDropsStaleWrapCounts(t *testing.T) {
	v := NewViewport(80, 3)

	// Long messages wrap to several physical lines each; rendering fills
	// the cache with their per-entry counts.
	base := time.Unix(1700000000, 0)
	var long []*history.Message
	for i := 0; i < 5; i++ {
		long = append(long, history.NewMessage(base, "bob", strings.Repeat("x", 300), false))
	}
	v.Render(long)

	// Rebinding to a log of one-line messages must not reuse those
	// counts: tail mode has to walk back far enough to fill the height.
	v.Reset()
	short := testLog(6)
	lines := v.Render(short)
	if len(lines) != 3 {
		t.Fatalf("tail render after rebind produced %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[len(lines)-1].Text, "msg05") {
		t.Errorf("last line = %q, want the newest message", lines[len(lines)-1].Text)
	}
}

func TestCachedCountsMatchFreshWrap(t *testing.T) {
	v := NewViewport(40, 4)
	log := testLog(8)
	log[2].Text = strings.Repeat("long ", 30)
	log[5].Text = strings.Repeat("word ", 20)

	// Populate the cache through rendering and paging.
	v.Render(log)
	v.PageUp(log)
	v.Render(log)

	if len(v.cache.counts) == 0 {
		t.Fatal("no entries cached")
	}
	for i, n := range v.cache.counts {
		fresh := len(Wrap(formatMsg(log[i]), v.Width()))
		if n != fresh {
			t.Errorf("entry %d: cached count %d, fresh wrap %d", i, n, fresh)
		}
	}

	// The rendered line total must match the sum the cache reports.
	if got, want := len(v.Render(log)), v.renderedLines(log); got != want {
		t.Errorf("rendered %d lines, cache reports %d", got, want)
	}
}

func TestRenderEmptyLog(t *testing.T) {
	v := NewViewport(80, 5)
	if lines := v.Render(nil); lines != nil {
		t.Errorf("rendered %d lines from empty log", len(lines))
	}
}

func TestCursorUpCrossesEntryBoundary(t *testing.T) {
	v := NewViewport(80, 2)
	log := testLog(5)
	v.Render(log)

	// Leave tail: cursor walks to the top of the rendered region,
	// then each further step reveals one older entry.
	v.CursorUp(log)
	v.CursorUp(log)
	lines := v.Render(log)
	if !strings.Contains(lines[0].Text, "msg02") {
		t.Errorf("first line = %q, want one revealed entry", lines[0].Text)
	}
	if v.Cursor() != 0 {
		t.Errorf("cursor = %d, want top of revealed entry", v.Cursor())
	}
}

func TestCursorUpAtTopStays(t *testing.T) {
	v := NewViewport(80, 5)
	log := testLog(2)
	v.Render(log)
	for i := 0; i < 10; i++ {
		v.CursorUp(log)
	}
	if v.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", v.Cursor())
	}
}

func TestPageDownReturnsToTail(t *testing.T) {
	v := NewViewport(80, 3)
	log := testLog(10)
	v.Render(log)
	v.Top(log)
	v.PageDown(log)
	v.PageDown(log)
	v.PageDown(log)

	lines := v.Render(log)
	if !strings.Contains(lines[len(lines)-1].Text, "msg09") {
		t.Errorf("after paging to end, last line = %q", lines[len(lines)-1].Text)
	}

	// New messages now follow automatically again.
	log = append(log, history.NewMessage(time.Unix(1700009999, 0), "bob", "fresh", false))
	lines = v.Render(log)
	if !strings.Contains(lines[len(lines)-1].Text, "fresh") {
		t.Errorf("tail did not follow new message, last line = %q", lines[len(lines)-1].Text)
	}
}

func TestTopAndBottom(t *testing.T) {
	v := NewViewport(80, 3)
	log := testLog(10)
	v.Render(log)

	v.Top(log)
	lines := v.Render(log)
	if !strings.Contains(lines[0].Text, "msg00") {
		t.Errorf("after Top, first line = %q", lines[0].Text)
	}
	if v.Cursor() != 0 {
		t.Errorf("after Top, cursor = %d", v.Cursor())
	}

	v.Bottom(log)
	lines = v.Render(log)
	if !strings.Contains(lines[len(lines)-1].Text, "msg09") {
		t.Errorf("after Bottom, last line = %q", lines[len(lines)-1].Text)
	}
}

func TestMultiLineEntryCursor(t *testing.T) {
	v := NewViewport(20, 4)
	base := time.Unix(1700000000, 0)
	log := []*history.Message{
		history.NewMessage(base, "bob", "one\ntwo\nthree", false),
		history.NewMessage(base.Add(time.Second), "bob", "tail", false),
	}
	v.Render(log)

	// The first entry wraps to multiple physical lines; stepping up
	// from the tail stays inside the rendered lines.
	v.CursorUp(log)
	if v.Cursor() != 2 {
		t.Errorf("cursor = %d, want 2", v.Cursor())
	}
	v.CursorUp(log)
	v.CursorUp(log)
	if v.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", v.Cursor())
	}
}

func TestResizeInvalidatesWrapCache(t *testing.T) {
	v := NewViewport(10, 10)
	base := time.Unix(1700000000, 0)
	log := []*history.Message{
		history.NewMessage(base, "bob", strings.Repeat("x", 30), false),
	}
	narrow := len(v.Render(log))

	v.Resize(80, 10)
	wide := len(v.Render(log))
	if wide >= narrow {
		t.Errorf("line count narrow=%d wide=%d, want fewer lines when wider", narrow, wide)
	}
}

func TestSearchBackwardExtendsView(t *testing.T) {
	v := NewViewport(80, 3)
	log := testLog(10)
	v.Render(log)

	if !v.Search(log, "msg01", false) {
		t.Fatal("backward search for old message failed")
	}
	lines := v.Render(log)
	if !strings.Contains(lines[v.Cursor()].Text, "msg01") {
		t.Errorf("cursor line = %q, want the match", lines[v.Cursor()].Text)
	}
}

func TestSearchForward(t *testing.T) {
	v := NewViewport(80, 3)
	log := testLog(10)
	v.Render(log)
	if !v.Search(log, "msg01", false) {
		t.Fatal("backward search failed")
	}
	if !v.Search(log, "msg03", true) {
		t.Fatal("forward search failed")
	}
	lines := v.Render(log)
	if !strings.Contains(lines[v.Cursor()].Text, "msg03") {
		t.Errorf("cursor line = %q, want the match", lines[v.Cursor()].Text)
	}
}

func TestSearchMissLeavesCursorAtBoundary(t *testing.T) {
	v := NewViewport(80, 3)
	log := testLog(5)
	v.Render(log)

	if v.Search(log, "no such text", false) {
		t.Fatal("search reported a match for absent text")
	}
	if v.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0 after failed backward search", v.Cursor())
	}
}
