package server

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"cellarena/game"
	"cellarena/protocol"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type rawEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool
}

func (f *fakeConn) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnClosed
	}
	if f.full {
		return ErrSendQueueFull
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func (f *fakeConn) envelopes(t *testing.T) []rawEnvelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]rawEnvelope, 0, len(f.frames))
	for _, b := range f.frames {
		var env rawEnvelope
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("decode frame %s: %v", b, err)
		}
		out = append(out, env)
	}
	return out
}

func (f *fakeConn) ofType(t *testing.T, typ string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, env := range f.envelopes(t) {
		if env.Type == typ {
			out = append(out, env.Data)
		}
	}
	return out
}

func testSettings() game.Settings {
	s := game.DefaultSettings()
	s.FoodTarget = 0
	s.DecayRate = 0
	return s
}

// newTestRoom builds a room that is driven by hand: the tick loops are not
// started, so tests call drain and the tick methods directly.
func newTestRoom(t *testing.T) *Room {
	t.Helper()
	r, err := NewRoom("test", RoomConfig{
		Settings: testSettings(),
		Logger:   zaptest.NewLogger(t),
		WorldOptions: []game.Option{
			game.WithoutInitialFood(),
			game.WithRand(rand.New(rand.NewSource(1))),
			game.WithClock(game.NewManualClock(epoch)),
		},
	})
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func connect(t *testing.T, r *Room) (*fakeConn, SessionID) {
	t.Helper()
	fc := &fakeConn{}
	id, err := r.Connect(fc, protocol.JSON)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return fc, id
}

// joinAt connects, joins and places the player's only cell.
func joinAt(t *testing.T, r *Room, name string, pos game.Vec, size float64) (*fakeConn, SessionID, *game.Player) {
	t.Helper()
	fc, id := connect(t, r)
	r.Submit(id, protocol.Join{Name: name})
	r.drain()
	s, ok := r.sessions[id]
	if !ok || !s.joined() {
		t.Fatalf("session %d did not join", id)
	}
	p, ok := r.world.Player(s.player)
	if !ok {
		t.Fatalf("player for session %d missing", id)
	}
	p.Cells[0].Pos = pos
	p.Cells[0].Size = size
	fc.reset()
	return fc, id, p
}

func TestJoinRepliesWithGameParams(t *testing.T) {
	r := newTestRoom(t)
	fc, id := connect(t, r)

	r.Submit(id, protocol.Join{Name: "alice"})
	r.drain()

	params := fc.ofType(t, protocol.TypeGameParams)
	if len(params) != 1 {
		t.Fatalf("gameParams frames = %d, want 1", len(params))
	}
	var gp protocol.GameParams
	if err := json.Unmarshal(params[0], &gp); err != nil {
		t.Fatalf("decode gameParams: %v", err)
	}
	p, ok := r.world.Player(game.PlayerID(gp.PlayerID))
	if !ok || p.Name != "alice" {
		t.Fatalf("gameParams names player %q which is not alice", gp.PlayerID)
	}
	if gp.Settings.FieldWidth != r.Settings().FieldWidth || gp.Settings.SplitCooldownMs != r.Settings().SplitCooldown.Milliseconds() {
		t.Fatalf("unexpected settings %+v", gp.Settings)
	}

	r.Submit(id, protocol.Join{Name: "again"})
	r.drain()
	if r.world.PlayerCount() != 1 {
		t.Fatalf("second join created another player")
	}
}

func TestIntentsBeforeJoinAreIgnored(t *testing.T) {
	r := newTestRoom(t)
	fc, id := connect(t, r)

	r.Submit(id, protocol.Move{DX: 1})
	r.Submit(id, protocol.Split{})
	r.Submit(SessionID(999), protocol.Join{Name: "ghost"})
	r.drain()
	r.fastTick()

	if got := r.metrics.IntentsIgnored; got != 3 {
		t.Fatalf("ignored = %d, want 3", got)
	}
	if r.world.PlayerCount() != 0 || len(fc.envelopes(t)) != 0 {
		t.Fatalf("intents before join had an effect")
	}
}

func TestDisconnectRemovesPlayerBeforeNextTick(t *testing.T) {
	r := newTestRoom(t)
	_, _, big := joinAt(t, r, "big", game.Vec{X: 1000, Y: 1000}, 200)
	gone, goneID, _ := joinAt(t, r, "gone", game.Vec{X: 1010, Y: 1000}, 48)

	r.Disconnect(goneID)
	r.drain()
	r.fastTick()

	if r.metrics.Eliminations != 0 {
		t.Fatalf("disconnected player was eliminated")
	}
	if big.Score != 0 || r.world.PlayerCount() != 1 {
		t.Fatalf("score=%d players=%d, want 0 and 1", big.Score, r.world.PlayerCount())
	}
	if !gone.isClosed() {
		t.Fatalf("connection not closed on detach")
	}
	if len(gone.envelopes(t)) != 0 {
		t.Fatalf("detached session received frames")
	}
}

func TestEliminationNotifiesVictimAndKeepsSession(t *testing.T) {
	r := newTestRoom(t)
	eaterConn, _, a := joinAt(t, r, "A", game.Vec{X: 1000, Y: 1000}, 100)
	victimConn, victimID, b := joinAt(t, r, "B", game.Vec{X: 1020, Y: 1000}, 40)
	b.Score = 37

	r.fastTick()

	if a.Score != 37 {
		t.Fatalf("A score = %d, want 37", a.Score)
	}
	deaths := victimConn.ofType(t, protocol.TypePlayerDeath)
	if len(deaths) != 1 {
		t.Fatalf("playerDeath frames = %d, want 1", len(deaths))
	}
	var d protocol.PlayerDeath
	if err := json.Unmarshal(deaths[0], &d); err != nil {
		t.Fatalf("decode playerDeath: %v", err)
	}
	if d.PlayerID != string(b.ID) || d.FinalScore != 37 || d.EatenBy != string(a.ID) {
		t.Fatalf("unexpected playerDeath %+v", d)
	}
	if n := len(eaterConn.ofType(t, protocol.TypePlayerDeath)); n != 0 {
		t.Fatalf("eater received %d playerDeath frames", n)
	}

	s, ok := r.sessions[victimID]
	if !ok || s.joined() || victimConn.isClosed() {
		t.Fatalf("victim session should stay attached without a player")
	}

	r.fastTick()
	if n := len(victimConn.ofType(t, protocol.TypePlayerDeath)); n != 1 {
		t.Fatalf("playerDeath sent %d times", n)
	}

	r.Submit(victimID, protocol.Join{Name: "B again"})
	r.drain()
	if !s.joined() || s.player == b.ID {
		t.Fatalf("rejoin did not create a fresh player")
	}
}

func TestMediumTickBroadcasts(t *testing.T) {
	r := newTestRoom(t)
	player, _, p := joinAt(t, r, "player", game.Vec{X: 2500, Y: 2500}, 48)
	spectator, _ := connect(t, r)
	r.drain()

	r.mediumTick()

	for name, fc := range map[string]*fakeConn{"player": player, "spectator": spectator} {
		if n := len(fc.ofType(t, protocol.TypeLeaderboard)); n != 1 {
			t.Fatalf("%s: leaderboard frames = %d", name, n)
		}
		updates := fc.ofType(t, protocol.TypePlayerUpdate)
		if len(updates) != 1 {
			t.Fatalf("%s: playerUpdate frames = %d", name, len(updates))
		}
		var u protocol.PlayerUpdate
		if err := json.Unmarshal(updates[0], &u); err != nil {
			t.Fatalf("decode playerUpdate: %v", err)
		}
		if v, ok := u.Players[string(p.ID)]; !ok || len(v.Cells) != 1 {
			t.Fatalf("%s: playerUpdate lacks the player: %+v", name, u)
		}
	}

	foods := player.ofType(t, protocol.TypeFoodUpdate)
	if len(foods) != 1 {
		t.Fatalf("foodUpdate frames = %d, want 1", len(foods))
	}
	var fu protocol.FoodUpdate
	if err := json.Unmarshal(foods[0], &fu); err != nil {
		t.Fatalf("decode foodUpdate: %v", err)
	}
	if len(fu.Foods) < r.Settings().MinFoodDensity {
		t.Fatalf("visible food = %d, want >= %d", len(fu.Foods), r.Settings().MinFoodDensity)
	}
	if n := len(spectator.ofType(t, protocol.TypeFoodUpdate)); n != 0 {
		t.Fatalf("spectator received foodUpdate")
	}

	var lb []protocol.LeaderEntry
	if err := json.Unmarshal(player.ofType(t, protocol.TypeLeaderboard)[0], &lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(lb) != 1 || lb[0].Name != "player" {
		t.Fatalf("leaderboard = %+v", lb)
	}
}

func TestSlowClientIsSkipped(t *testing.T) {
	r := newTestRoom(t)
	slow, _, _ := joinAt(t, r, "slow", game.Vec{X: 1000, Y: 1000}, 48)
	fast, _, _ := joinAt(t, r, "fast", game.Vec{X: 4000, Y: 4000}, 48)
	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	r.mediumTick()

	if r.metrics.SendsDropped != 3 {
		t.Fatalf("dropped = %d, want 3", r.metrics.SendsDropped)
	}
	if len(fast.envelopes(t)) != 3 {
		t.Fatalf("healthy client got %d frames, want 3", len(fast.envelopes(t)))
	}
	if slow.isClosed() {
		t.Fatalf("slow client was disconnected")
	}
}

func TestClientScoreIsNeverApplied(t *testing.T) {
	r := newTestRoom(t)
	_, id, p := joinAt(t, r, "cheater", game.Vec{X: 1000, Y: 1000}, 48)

	r.Submit(id, protocol.Score{Score: 9999})
	r.drain()

	if p.Score != 0 {
		t.Fatalf("score = %d, want 0", p.Score)
	}
	if r.metrics.IntentsIgnored != 1 {
		t.Fatalf("ignored = %d, want 1", r.metrics.IntentsIgnored)
	}
}

func TestIntentsReachTheWorld(t *testing.T) {
	r := newTestRoom(t)
	_, id, p := joinAt(t, r, "mover", game.Vec{X: 1000, Y: 1000}, 400)

	r.Submit(id, protocol.Move{DX: 3, DY: 4})
	r.Submit(id, protocol.Split{})
	r.Submit(id, protocol.Split{}) // within the cooldown
	r.drain()

	if d := p.Cells[0].Dir; d.X != 0.6 || d.Y != 0.8 {
		t.Fatalf("dir = %+v, want (0.6, 0.8)", d)
	}
	if len(p.Cells) != 2 {
		t.Fatalf("cells = %d, want 2", len(p.Cells))
	}
	if r.metrics.IntentsAccepted != 3 || r.metrics.IntentsIgnored != 1 {
		t.Fatalf("accepted=%d ignored=%d, want 3 and 1", r.metrics.IntentsAccepted, r.metrics.IntentsIgnored)
	}

	r.Submit(id, protocol.Target{X: 1200, Y: 1000})
	r.drain()
	if p.Target == nil || *p.Target != (game.Vec{X: 1200, Y: 1000}) {
		t.Fatalf("target = %v", p.Target)
	}
}

func TestInboxFullDropsIntents(t *testing.T) {
	r := newTestRoom(t)
	_, id := connect(t, r)
	for i := 0; i < inboxSize+10; i++ {
		r.Submit(id, protocol.Split{})
	}
	if r.metrics.InboxFull != 11 {
		t.Fatalf("inbox_full = %d, want 11", r.metrics.InboxFull)
	}
}

func TestMsgpackSessionGetsBinaryFrames(t *testing.T) {
	r := newTestRoom(t)
	fc := &fakeConn{}
	id, err := r.Connect(fc, protocol.Msgpack)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	r.Submit(id, protocol.Join{Name: "bin"})
	r.drain()

	fc.mu.Lock()
	frame := fc.frames[0]
	fc.mu.Unlock()
	var env struct {
		Type string              `json:"type"`
		Data protocol.GameParams `json:"data"`
	}
	if err := protocol.Msgpack.Unmarshal(frame, &env); err != nil {
		t.Fatalf("decode msgpack frame: %v", err)
	}
	if env.Type != protocol.TypeGameParams || env.Data.PlayerID == "" {
		t.Fatalf("unexpected frame %+v", env)
	}
}

func TestCloseShutsConnections(t *testing.T) {
	r := newTestRoom(t)
	fc, _ := connect(t, r)

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fc.isClosed() {
		t.Fatalf("connection left open")
	}
	if _, err := r.Connect(&fakeConn{}, protocol.JSON); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("Connect after Close err = %v, want ErrRoomClosed", err)
	}
}

func TestRoomLoopBroadcastsJoinedPlayer(t *testing.T) {
	r, err := NewRoom("live", RoomConfig{
		Settings:     testSettings(),
		FastEvery:    5 * time.Millisecond,
		MediumEvery:  5 * time.Millisecond,
		SlowEvery:    50 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
		WorldOptions: []game.Option{game.WithoutInitialFood()},
	})
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	r.StartTicker()
	defer r.Close()

	fc, id := connect(t, r)
	r.Submit(id, protocol.Join{Name: "live"})

	timeout := time.After(2 * time.Second)
	for {
		select {
		case <-timeout:
			t.Fatalf("timed out waiting for a playerUpdate with the joined player")
		case <-time.After(10 * time.Millisecond):
		}
		params := fc.ofType(t, protocol.TypeGameParams)
		if len(params) == 0 {
			continue
		}
		var gp protocol.GameParams
		if err := json.Unmarshal(params[0], &gp); err != nil {
			t.Fatalf("decode gameParams: %v", err)
		}
		for _, raw := range fc.ofType(t, protocol.TypePlayerUpdate) {
			var u protocol.PlayerUpdate
			if err := json.Unmarshal(raw, &u); err != nil {
				t.Fatalf("decode playerUpdate: %v", err)
			}
			if _, ok := u.Players[gp.PlayerID]; ok {
				if err := r.Close(); err != nil {
					t.Fatalf("Close: %v", err)
				}
				if !fc.isClosed() {
					t.Fatalf("connection left open after Close")
				}
				return
			}
		}
	}
}
