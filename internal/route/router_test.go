package route

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nuqql/nuqql/internal/backend"
	"github.com/nuqql/nuqql/internal/conv"
	"github.com/nuqql/nuqql/internal/paths"
	"github.com/nuqql/nuqql/internal/proto"
	"github.com/nuqql/nuqql/internal/status"
)

type testRig struct {
	router  *Router
	reg     *backend.Registry
	list    *conv.List
	nuqql   *conv.Conversation
	backend *backend.Backend
	control *conv.Conversation
	quits   int
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	paths.SetBaseDir(t.TempDir())
	logger := zap.NewNop()

	rig := &testRig{
		reg:  backend.NewRegistry(logger),
		list: conv.NewList("last_send", nil),
	}

	self := backend.NewSelf(logger)
	rig.nuqql = conv.NewNuqql(self)
	self.SetControl(rig.nuqql)
	rig.reg.Add(self)
	rig.list.Add(rig.nuqql)

	rig.backend = backend.New(backend.Discovered{Name: "purpled", Network: "unix", Addr: "purpled.sock"}, logger)
	rig.control = conv.NewBackend(rig.backend)
	rig.backend.SetControl(rig.control)
	rig.reg.Add(rig.backend)
	rig.list.Add(rig.control)

	r, err := New(rig.reg, rig.list, rig.nuqql, paths.GlobalStatusPath(),
		func() { rig.quits++ }, logger)
	if err != nil {
		t.Fatal(err)
	}
	rig.router = r
	return rig
}

// feed decodes a wire line and applies it.
func (rig *testRig) feed(t *testing.T, line string) {
	t.Helper()
	ev := proto.Decode(rig.backend.Name, line)
	if ev == nil {
		t.Fatalf("line %q decoded to nil", line)
	}
	rig.router.handle(rig.backend, ev)
}

func TestMessageFlow(t *testing.T) {
	rig := newTestRig(t)
	rig.feed(t, "account: 0 acc xmpp alice@jabber.org online")
	rig.feed(t, "buddy: 0 status: online name: bob@jabber.org alias: Bob")

	acc := rig.backend.Accounts["alice@jabber.org"]
	if acc == nil {
		t.Fatal("account not created")
	}
	c := rig.list.Find(rig.backend, "0", "bob@jabber.org")
	if c == nil {
		t.Fatal("buddy conversation not created")
	}

	// Sender resource suffix is stripped, markup decoded, and the
	// unread message raises a notification.
	rig.feed(t, "message: 0 alice@jabber.org 1700000000 bob@jabber.org/phone Hi<br>there")
	if len(c.Log) != 1 {
		t.Fatalf("log length = %d, want 1", len(c.Log))
	}
	m := c.Log[0]
	if m.Sender != "bob@jabber.org" || m.Text != "Hi\nthere" || m.Own {
		t.Errorf("message = %+v", m)
	}
	if c.Notifications != 1 {
		t.Errorf("notifications = %d, want 1", c.Notifications)
	}
}

func TestOwnMessageRoutesToDestination(t *testing.T) {
	rig := newTestRig(t)
	rig.feed(t, "account: 0 acc xmpp alice@jabber.org online")
	rig.feed(t, "buddy: 0 status: online name: bob@jabber.org alias: Bob")

	// A copy of our own message sent from another client.
	rig.feed(t, "message: 0 bob@jabber.org 1700000000 alice@jabber.org/laptop also me")
	c := rig.list.Find(rig.backend, "0", "bob@jabber.org")
	if len(c.Log) != 1 || !c.Log[0].Own {
		t.Fatalf("log = %+v", c.Log)
	}
	if c.Notifications != 0 {
		t.Errorf("own message raised %d notifications", c.Notifications)
	}
}

func TestUnroutedMessageGoesToControl(t *testing.T) {
	rig := newTestRig(t)
	rig.feed(t, "account: 0 acc xmpp alice@jabber.org online")
	rig.feed(t, "message: 0 alice@jabber.org 1700000000 stranger@jabber.org psst")

	last := rig.control.Log[len(rig.control.Log)-1]
	if !strings.Contains(last.Text, "unrouted") || !strings.Contains(last.Text, "stranger@jabber.org") {
		t.Errorf("control log entry = %q", last.Text)
	}
}

func TestCollectedBacklogReplays(t *testing.T) {
	rig := newTestRig(t)
	rig.feed(t, "account: 0 acc xmpp alice@jabber.org online")
	rig.feed(t, "buddy: 0 status: online name: bob@jabber.org alias: Bob")
	rig.feed(t, "collect: 0 alice@jabber.org 1600000000 bob@jabber.org old one")
	rig.feed(t, "collect: 0 alice@jabber.org 1600000060 bob@jabber.org old two")

	c := rig.list.Find(rig.backend, "0", "bob@jabber.org")
	if len(c.Log) != 2 {
		t.Fatalf("log length = %d, want 2", len(c.Log))
	}
}

func TestErrorDestroysTemporaryGroup(t *testing.T) {
	rig := newTestRig(t)
	rig.feed(t, "account: 0 acc xmpp alice@jabber.org online")
	acc := rig.backend.Accounts["alice@jabber.org"]

	g := conv.NewGroup(rig.backend, acc, "room@conference.jabber.org", true)
	rig.list.Add(g)

	rig.feed(t, "error: could not join room@conference.jabber.org")
	if rig.list.Find(rig.backend, "0", "room@conference.jabber.org") != nil {
		t.Error("temporary group conversation survived the join error")
	}

	// Unrelated errors only hit the control conversation.
	g2 := conv.NewGroup(rig.backend, acc, "other@conference.jabber.org", true)
	rig.list.Add(g2)
	rig.feed(t, "error: something else entirely")
	if rig.list.Find(rig.backend, "0", "other@conference.jabber.org") == nil {
		t.Error("unrelated error destroyed a temporary group")
	}
}

func TestChatListConfirmsJoin(t *testing.T) {
	rig := newTestRig(t)
	rig.feed(t, "account: 0 acc xmpp alice@jabber.org online")
	acc := rig.backend.Accounts["alice@jabber.org"]

	g := conv.NewGroup(rig.backend, acc, "room@conference.jabber.org", true)
	rig.list.Add(g)

	rig.feed(t, "chat: list: 0 room@conference.jabber.org room alice")
	if g.Temporary {
		t.Error("join not confirmed by chat list")
	}
	if b := acc.Buddy("room@conference.jabber.org"); b == nil || b.Status != "grp" {
		t.Errorf("roster entry = %+v", b)
	}
}

func TestChatMsgCreatesGroupConversation(t *testing.T) {
	rig := newTestRig(t)
	rig.feed(t, "account: 0 acc xmpp alice@jabber.org online")
	rig.feed(t, "chat: msg: 0 room@conference.jabber.org 1700000000 bob hello room")

	c := rig.list.Find(rig.backend, "0", "room@conference.jabber.org")
	if c == nil || c.Kind != conv.KindGroup {
		t.Fatalf("group conversation = %+v", c)
	}
	if len(c.Log) != 1 || c.Log[0].Text != "hello room" {
		t.Errorf("log = %+v", c.Log)
	}
}

func TestChatUserLogsMemberEvent(t *testing.T) {
	rig := newTestRig(t)
	rig.feed(t, "account: 0 acc xmpp alice@jabber.org online")
	acc := rig.backend.Accounts["alice@jabber.org"]
	g := conv.NewGroup(rig.backend, acc, "room@conference.jabber.org", false)
	rig.list.Add(g)

	rig.feed(t, "chat: user: 0 room@conference.jabber.org bob Bob online")
	if len(g.Log) != 1 {
		t.Fatalf("log length = %d, want 1", len(g.Log))
	}
	if !strings.Contains(g.Log[0].Text, "bob") || g.Notifications != 0 {
		t.Errorf("member event = %+v, notifications = %d", g.Log[0], g.Notifications)
	}
}

func TestNuqqlBackendsCommand(t *testing.T) {
	rig := newTestRig(t)
	rig.router.HandleNuqqlCommand("backends")

	var texts []string
	for _, m := range rig.nuqql.Log {
		texts = append(texts, m.Text)
	}
	joined := strings.Join(texts, "\n")
	if !strings.Contains(joined, "nuqql: self") || !strings.Contains(joined, "purpled: stopped") {
		t.Errorf("backends reply = %q", joined)
	}
}

func TestNuqqlGlobalStatus(t *testing.T) {
	rig := newTestRig(t)

	rig.router.HandleNuqqlCommand("global-status get")
	if last := rig.nuqql.Log[len(rig.nuqql.Log)-1]; !strings.Contains(last.Text, "(not set)") {
		t.Errorf("get reply = %q", last.Text)
	}

	rig.router.HandleNuqqlCommand("global-status set away")
	gs, err := status.Load(paths.GlobalStatusPath())
	if err != nil || gs != "away" {
		t.Errorf("persisted status = %q, %v", gs, err)
	}

	rig.router.HandleNuqqlCommand("global-status get")
	if last := rig.nuqql.Log[len(rig.nuqql.Log)-1]; !strings.Contains(last.Text, "away") {
		t.Errorf("get reply after set = %q", last.Text)
	}
}

func TestNuqqlStopBackend(t *testing.T) {
	rig := newTestRig(t)
	rig.feed(t, "account: 0 acc xmpp alice@jabber.org online")
	rig.feed(t, "buddy: 0 status: online name: bob@jabber.org alias: Bob")

	rig.router.HandleNuqqlCommand("stop purpled")
	if rig.list.Find(rig.backend, "0", "bob@jabber.org") != nil {
		t.Error("buddy conversation survived backend stop")
	}
	if len(rig.backend.Accounts) != 0 {
		t.Error("accounts survived backend stop")
	}

	rig.router.HandleNuqqlCommand("stop nuqql")
	if last := rig.nuqql.Log[len(rig.nuqql.Log)-1]; !strings.Contains(last.Text, "no such backend") {
		t.Errorf("stopping the self backend replied %q", last.Text)
	}
}

func TestNuqqlQuitAndUnknown(t *testing.T) {
	rig := newTestRig(t)
	rig.router.HandleNuqqlCommand("quit")
	if rig.quits != 1 {
		t.Errorf("quit invoked %d times, want 1", rig.quits)
	}

	rig.router.HandleNuqqlCommand("frobnicate")
	if last := rig.nuqql.Log[len(rig.nuqql.Log)-1]; !strings.Contains(last.Text, "unknown command") {
		t.Errorf("unknown command reply = %q", last.Text)
	}

	rig.router.HandleNuqqlCommand("help")
	if last := rig.nuqql.Log[len(rig.nuqql.Log)-1]; !strings.Contains(last.Text, "global-status") {
		t.Errorf("help reply = %q", last.Text)
	}
}

func TestGlobalStatusSurvivesRestart(t *testing.T) {
	rig := newTestRig(t)
	rig.router.HandleNuqqlCommand("global-status set dnd")

	// A new router over the same state directory sees the saved status.
	r2, err := New(rig.reg, rig.list, rig.nuqql, paths.GlobalStatusPath(), nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if r2.globalStatus != "dnd" {
		t.Errorf("global status after reload = %q, want dnd", r2.globalStatus)
	}
}
