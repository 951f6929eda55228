package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"snowfight/game"
	"snowfight/tilemap"
)

type fakeConn struct {
	msgs   [][]byte
	closed bool
}

func (f *fakeConn) Enqueue(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	f.msgs = append(f.msgs, cp)
}

func (f *fakeConn) Close() { f.closed = true }

// last 返回最近一条指定类型的消息，解析到 v
func (f *fakeConn) last(t *testing.T, kind string, v any) bool {
	t.Helper()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		fr, err := jsonCodec{}.Decode(f.msgs[i])
		if err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if fr.Type != kind {
			continue
		}
		if err := fr.Data(v); err != nil {
			t.Fatalf("decode %s: %v", kind, err)
		}
		return true
	}
	return false
}

func testWorld(t *testing.T) *tilemap.Map {
	t.Helper()
	// 4x4 地图，(1,2) 为实心格
	ground := make([][]tilemap.Tile, 4)
	decal := make([][]*tilemap.Tile, 4)
	for r := range ground {
		ground[r] = make([]tilemap.Tile, 4)
		decal[r] = make([]*tilemap.Tile, 4)
	}
	decal[1][2] = &tilemap.Tile{ID: 0, GID: 1}
	m, err := tilemap.FromLayers(ground, decal, 32)
	if err != nil {
		t.Fatalf("FromLayers: %v", err)
	}
	return m
}

type testClock struct {
	t time.Time
}

func (c *testClock) advance(d time.Duration) time.Time {
	c.t = c.t.Add(d)
	return c.t
}

func newTestRoom(t *testing.T, opts RoomOptions) (*Room, *testClock) {
	t.Helper()
	r := NewRoom("test", testWorld(t), opts)
	clk := &testClock{t: time.Unix(1700000000, 0)}
	r.now = func() time.Time { return clk.t }
	r.last = clk.t
	return r, clk
}

func frame(t *testing.T, kind string, data any) []byte {
	t.Helper()
	b, err := jsonCodec{}.Encode(kind, data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func findPlayer(ps []PlayerState, id string) (PlayerState, bool) {
	for _, p := range ps {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerState{}, false
}

func TestRoomJoinSendsWelcomeMapAndSnapshot(t *testing.T) {
	r, clk := newTestRoom(t, RoomOptions{})
	fc := &fakeConn{}
	r.Join("a", fc)
	r.step(clk.advance(33 * time.Millisecond))

	var w Welcome
	if !fc.last(t, MsgWelcome, &w) || w.ID != "a" || w.TickRate != 30 {
		t.Fatalf("welcome = %+v", w)
	}
	var m MapState
	if !fc.last(t, MsgMap, &m) || len(m.Decal) != 4 || m.Decal[1][2] == nil || m.Decal[0][0] != nil {
		t.Fatalf("map message missing or wrong: %+v", m)
	}
	var ps []PlayerState
	if !fc.last(t, MsgPlayers, &ps) {
		t.Fatalf("no players snapshot")
	}
	p, ok := findPlayer(ps, "a")
	if !ok {
		t.Fatalf("player a missing from snapshot %+v", ps)
	}
	rules := game.DefaultRules()
	if p.X != rules.SpawnX || p.Y != rules.SpawnY || p.IsMuted || p.VoiceID == "" {
		t.Fatalf("unexpected spawned player %+v", p)
	}
	var bs []SnowballState
	if !fc.last(t, MsgSnowballs, &bs) || len(bs) != 0 {
		t.Fatalf("snowballs = %+v, want empty list", bs)
	}
	if r.NumPlayers() != 1 || r.TickSeq() != 1 {
		t.Fatalf("players=%d tick=%d", r.NumPlayers(), r.TickSeq())
	}
}

func TestRoomInputMovesPlayer(t *testing.T) {
	r, clk := newTestRoom(t, RoomOptions{})
	fc := &fakeConn{}
	r.Join("a", fc)
	r.step(clk.advance(33 * time.Millisecond))

	r.HandleFrame("a", frame(t, MsgInputs, map[string]bool{"up": true, "down": false, "left": true, "right": false}))
	r.step(clk.advance(33 * time.Millisecond))
	r.step(clk.advance(33 * time.Millisecond))

	var ps []PlayerState
	fc.last(t, MsgPlayers, &ps)
	p, _ := findPlayer(ps, "a")
	if p.X != 1490 || p.Y != 990 {
		t.Fatalf("pos = (%v,%v), want (1490,990)", p.X, p.Y)
	}
	if got := r.Metrics().Snapshot()["inputs_accepted"]; got != int64(1) {
		t.Fatalf("inputs_accepted = %v", got)
	}
}

func TestRoomMalformedInputKeepsLastState(t *testing.T) {
	r, clk := newTestRoom(t, RoomOptions{})
	fc := &fakeConn{}
	r.Join("a", fc)
	r.HandleFrame("a", frame(t, MsgInputs, map[string]bool{"up": false, "down": true, "left": false, "right": false}))
	r.step(clk.advance(33 * time.Millisecond))

	bad := [][]byte{
		[]byte(`{"type":"inputs","data":{"up":"yes","down":false,"left":false,"right":false}}`),
		[]byte(`{"type":"inputs","data":{"up":true}}`),
		[]byte(`{"type":"inputs"}`),
		[]byte(`{"type":"snowball","data":"north"}`),
		[]byte(`{"type":"snowball","data":null}`),
		[]byte(`{"type":"mute","data":1}`),
		[]byte(`not json`),
	}
	for _, b := range bad {
		r.HandleFrame("a", b)
	}
	r.step(clk.advance(33 * time.Millisecond))

	var ps []PlayerState
	fc.last(t, MsgPlayers, &ps)
	p, _ := findPlayer(ps, "a")
	if p.Y != 1010 {
		t.Fatalf("y = %v, want 1010 (still moving down)", p.Y)
	}
	if got := r.Metrics().Snapshot()["malformed"]; got != int64(len(bad)) {
		t.Fatalf("malformed = %v, want %d", got, len(bad))
	}
	var bs []SnowballState
	fc.last(t, MsgSnowballs, &bs)
	if len(bs) != 0 {
		t.Fatalf("malformed throw spawned snowballs: %+v", bs)
	}
}

func TestRoomUnknownTypeIgnored(t *testing.T) {
	r, _ := newTestRoom(t, RoomOptions{})
	r.HandleFrame("a", []byte(`{"type":"chat","data":"hi"}`))
	if len(r.events) != 0 {
		t.Fatalf("unknown message type should not be queued")
	}
	if got := r.Metrics().Snapshot()["malformed"]; got != int64(0) {
		t.Fatalf("malformed = %v", got)
	}
}

func TestRoomThrowHitsOtherPlayer(t *testing.T) {
	r, clk := newTestRoom(t, RoomOptions{})
	fa, fb := &fakeConn{}, &fakeConn{}
	r.Join("a", fa)
	r.Join("b", fb)
	r.step(clk.advance(33 * time.Millisecond))

	r.HandleFrame("a", frame(t, MsgSnowball, math.Pi/4))
	r.step(clk.advance(33 * time.Millisecond))

	var ps []PlayerState
	fb.last(t, MsgPlayers, &ps)
	b, _ := findPlayer(ps, "b")
	if b.X != 0 || b.Y != 0 {
		t.Fatalf("victim at (%v,%v), want (0,0)", b.X, b.Y)
	}
	a, _ := findPlayer(ps, "a")
	rules := game.DefaultRules()
	if a.X != rules.SpawnX || a.Y != rules.SpawnY {
		t.Fatalf("thrower moved to (%v,%v)", a.X, a.Y)
	}
	var bs []SnowballState
	fb.last(t, MsgSnowballs, &bs)
	if len(bs) != 0 {
		t.Fatalf("snowball should be gone after hit, got %+v", bs)
	}
	snap := r.Metrics().Snapshot()
	if snap["hits"] != int64(1) || snap["throws"] != int64(1) {
		t.Fatalf("metrics = %+v", snap)
	}
}

func TestRoomSnowballUsesMeasuredDelta(t *testing.T) {
	r, clk := newTestRoom(t, RoomOptions{})
	fc := &fakeConn{}
	r.Join("a", fc)
	r.step(clk.advance(33 * time.Millisecond))

	r.HandleFrame("a", frame(t, MsgSnowball, 0.0))
	// 定时器迟到：实际间隔 120ms
	r.step(clk.advance(120 * time.Millisecond))

	var bs []SnowballState
	fc.last(t, MsgSnowballs, &bs)
	if len(bs) != 1 {
		t.Fatalf("snowballs = %+v, want one", bs)
	}
	if bs[0].TimeLeft != 880 || bs[0].PlayerID != "a" || bs[0].X != 1507 || bs[0].Y != 1000 {
		t.Fatalf("unexpected snowball %+v", bs[0])
	}

	// 再过 900ms 后寿命耗尽
	r.step(clk.advance(900 * time.Millisecond))
	fc.last(t, MsgSnowballs, &bs)
	if len(bs) != 0 {
		t.Fatalf("snowball should have expired, got %+v", bs)
	}
}

func TestRoomLeaveRemovesPlayerFromNextSnapshot(t *testing.T) {
	r, clk := newTestRoom(t, RoomOptions{})
	fa, fb := &fakeConn{}, &fakeConn{}
	r.Join("a", fa)
	r.Join("b", fb)
	r.step(clk.advance(33 * time.Millisecond))

	r.HandleFrame("b", frame(t, MsgSnowball, math.Pi))
	r.RequestLeave("b")
	r.step(clk.advance(33 * time.Millisecond))

	if !fb.closed {
		t.Fatalf("leaving player's connection should be closed")
	}
	var ps []PlayerState
	fa.last(t, MsgPlayers, &ps)
	if _, ok := findPlayer(ps, "b"); ok {
		t.Fatalf("b still present after leave: %+v", ps)
	}
	if r.NumPlayers() != 1 {
		t.Fatalf("NumPlayers = %d, want 1", r.NumPlayers())
	}
	// 投掷事件排在离开之后，投掷者已不存在
	if got := r.Metrics().Snapshot()["unknown_actor"]; got != int64(1) {
		t.Fatalf("unknown_actor = %v, want 1", got)
	}
}

func TestRoomOrphanSnowballKeepsFlying(t *testing.T) {
	r, clk := newTestRoom(t, RoomOptions{})
	fa, fb := &fakeConn{}, &fakeConn{}
	r.Join("a", fa)
	r.Join("b", fb)
	r.step(clk.advance(33 * time.Millisecond))

	// b 向下扔，a 向右移开，避免在出生点被命中
	r.HandleFrame("a", frame(t, MsgInputs, map[string]bool{"up": false, "down": false, "left": false, "right": true}))
	r.step(clk.advance(33 * time.Millisecond))
	r.step(clk.advance(33 * time.Millisecond))
	r.step(clk.advance(33 * time.Millisecond))
	r.step(clk.advance(33 * time.Millisecond))
	r.HandleFrame("b", frame(t, MsgSnowball, math.Pi/2))
	r.step(clk.advance(33 * time.Millisecond))
	r.RequestLeave("b")
	r.step(clk.advance(33 * time.Millisecond))

	var bs []SnowballState
	fa.last(t, MsgSnowballs, &bs)
	if len(bs) != 1 || bs[0].PlayerID != "b" {
		t.Fatalf("orphan snowball should keep flying, got %+v", bs)
	}
}

func TestRoomMuteAndVoiceID(t *testing.T) {
	r, clk := newTestRoom(t, RoomOptions{})
	fc := &fakeConn{}
	r.Join("a", fc)
	r.step(clk.advance(33 * time.Millisecond))

	r.HandleFrame("a", frame(t, MsgMute, true))
	r.HandleFrame("a", frame(t, MsgVoiceID, 123456))
	r.step(clk.advance(33 * time.Millisecond))

	var ps []PlayerState
	fc.last(t, MsgPlayers, &ps)
	p, _ := findPlayer(ps, "a")
	if !p.IsMuted || p.VoiceID != "123456" {
		t.Fatalf("player = %+v, want muted with voiceId 123456", p)
	}

	r.HandleFrame("a", frame(t, MsgVoiceID, "peer-xyz"))
	r.HandleFrame("ghost", frame(t, MsgMute, true))
	r.step(clk.advance(33 * time.Millisecond))
	fc.last(t, MsgPlayers, &ps)
	p, _ = findPlayer(ps, "a")
	if p.VoiceID != "peer-xyz" {
		t.Fatalf("voiceId = %q", p.VoiceID)
	}
	if got := r.Metrics().Snapshot()["unknown_actor"]; got != int64(1) {
		t.Fatalf("unknown_actor = %v, want 1", got)
	}
}

func TestRoomIdleTickKeepsPositions(t *testing.T) {
	r, clk := newTestRoom(t, RoomOptions{})
	fc := &fakeConn{}
	r.Join("a", fc)
	r.Join("b", &fakeConn{})
	r.step(clk.advance(33 * time.Millisecond))
	var before []PlayerState
	fc.last(t, MsgPlayers, &before)

	for i := 0; i < 10; i++ {
		r.step(clk.advance(33 * time.Millisecond))
	}
	var after []PlayerState
	fc.last(t, MsgPlayers, &after)
	if len(before) != len(after) {
		t.Fatalf("player count changed %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("player changed on idle ticks: %+v -> %+v", before[i], after[i])
		}
	}
}

func TestRoomQueueFullDiscards(t *testing.T) {
	r, _ := newTestRoom(t, RoomOptions{QueueSize: 1})
	mute := frame(t, MsgMute, true)
	r.HandleFrame("a", mute)
	r.HandleFrame("a", mute)
	if got := r.Metrics().Snapshot()["chan_full_discarded"]; got != int64(1) {
		t.Fatalf("chan_full_discarded = %v, want 1", got)
	}
}

func TestRoomInputsSurviveFullQueue(t *testing.T) {
	r, clk := newTestRoom(t, RoomOptions{QueueSize: 1})
	fc := &fakeConn{}
	r.Join("a", fc)
	r.step(clk.advance(33 * time.Millisecond))

	// 队列被静音事件占满，之后的方向输入不应丢失
	r.HandleFrame("a", frame(t, MsgMute, true))
	r.HandleFrame("a", frame(t, MsgMute, false))
	r.HandleFrame("a", frame(t, MsgInputs, map[string]bool{"up": true, "down": false, "left": false, "right": false}))
	for i := 0; i < 10; i++ {
		r.HandleFrame("a", frame(t, MsgInputs, map[string]bool{"up": false, "down": false, "left": i%2 == 0, "right": false}))
	}
	r.HandleFrame("a", frame(t, MsgInputs, map[string]bool{"up": false, "down": false, "left": false, "right": false}))
	r.step(clk.advance(33 * time.Millisecond))
	r.step(clk.advance(33 * time.Millisecond))

	var ps []PlayerState
	fc.last(t, MsgPlayers, &ps)
	p, _ := findPlayer(ps, "a")
	rules := game.DefaultRules()
	if p.X != rules.SpawnX || p.Y != rules.SpawnY {
		t.Fatalf("pos = (%v,%v), want player stopped at spawn", p.X, p.Y)
	}
	if !p.IsMuted {
		t.Fatalf("first queued mute should have been applied")
	}
	snap := r.Metrics().Snapshot()
	if snap["chan_full_discarded"] != int64(1) || snap["inputs_accepted"] != int64(1) {
		t.Fatalf("metrics = %+v, want one discarded mute and one coalesced input", snap)
	}
}

func TestRoomInputQueuedWithJoinApplies(t *testing.T) {
	r, clk := newTestRoom(t, RoomOptions{})
	fc := &fakeConn{}
	r.Join("a", fc)
	r.HandleFrame("a", frame(t, MsgInputs, map[string]bool{"up": true, "down": false, "left": false, "right": false}))
	r.step(clk.advance(33 * time.Millisecond))

	var ps []PlayerState
	fc.last(t, MsgPlayers, &ps)
	p, _ := findPlayer(ps, "a")
	if p.Y != game.DefaultRules().SpawnY-5 {
		t.Fatalf("y = %v, input sent right after join should apply on the first tick", p.Y)
	}
	if got := r.Metrics().Snapshot()["unknown_actor"]; got != int64(0) {
		t.Fatalf("unknown_actor = %v, want 0", got)
	}
}

func TestRoomSetRules(t *testing.T) {
	r, _ := newTestRoom(t, RoomOptions{})
	rules := r.Rules()
	rules.SnowballLifetime = 0
	if err := r.SetRules(rules); !errors.Is(err, ErrInvalidRules) {
		t.Fatalf("err = %v, want ErrInvalidRules", err)
	}
	rules.SnowballLifetime = 2000
	rules.Speed = 8
	if err := r.SetRules(rules); err != nil {
		t.Fatalf("SetRules: %v", err)
	}
	if got := r.Rules(); got.Speed != 8 || got.SnowballLifetime != 2000 {
		t.Fatalf("rules = %+v", got)
	}
}

func TestRoomRunStopsOnCancel(t *testing.T) {
	r := NewRoom("run", testWorld(t), RoomOptions{TickRate: 200})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for r.TickSeq() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("room did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := r.Run(ctx); !errors.Is(err, ErrRoomRunning) {
		t.Fatalf("second Run err = %v, want ErrRoomRunning", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	seq := r.TickSeq()
	time.Sleep(30 * time.Millisecond)
	if r.TickSeq() != seq {
		t.Fatalf("ticks continued after cancel")
	}
}

func TestRoomStop(t *testing.T) {
	r := NewRoom("stop", testWorld(t), RoomOptions{TickRate: 200})
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	r.Stop()
	r.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Stop")
	}
	// 停止后加入请求不会阻塞
	for i := 0; i < 100; i++ {
		r.Join("late", &fakeConn{})
	}
}

func TestPlayerStatesJSONShape(t *testing.T) {
	b, err := json.Marshal(playerStates([]*game.Player{{ID: "a", X: 1, Y: 2, IsMuted: true, VoiceID: "v"}}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"id":"a","x":1,"y":2,"isMuted":true,"voiceId":"v"}]`
	if string(b) != want {
		t.Fatalf("players json = %s, want %s", b, want)
	}
	b, err = json.Marshal(snowballStates([]*game.Snowball{{PlayerID: "a", X: 1, Y: 2, Angle: 0.5, TimeLeft: 10}}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want = `[{"x":1,"y":2,"angle":0.5,"timeLeft":10,"playerId":"a"}]`
	if string(b) != want {
		t.Fatalf("snowballs json = %s, want %s", b, want)
	}
}
