package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"snowfight/game"
	"snowfight/tilemap"
)

// Conn 会话的发送端；只在 Tick 协程中调用
type Conn interface {
	Enqueue(b []byte)
	Close()
}

// RoomOptions 房间参数，零值字段使用默认值
type RoomOptions struct {
	TickRate  int
	QueueSize int
	Codec     Codec
	Rules     *game.Rules
}

// Room 房间世界：权威状态维护在内存，单协程 Tick 推进。
// store 与 sessions 只允许 Tick 协程访问，其余协程通过事件通道投递意图。
type Room struct {
	ID string

	store    *game.Store
	world    *tilemap.Map
	sessions map[string]Conn

	events    chan event // 投掷/静音等，满则丢弃
	lifecycle chan event // 加入/离开，保证送达

	// 方向输入是电平状态，按玩家只保留最后一次，不进入有界队列
	inputMu      sync.Mutex
	latestInputs map[string]game.Input

	rules    atomic.Pointer[game.Rules]
	codec    Codec
	metrics  *RoomMetrics
	tickRate int
	tickSeq  atomic.Int64
	players  atomic.Int32

	now     func() time.Time
	last    time.Time
	running atomic.Bool
	quit    chan struct{}
	stop    sync.Once

	mapMsg []byte
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, world *tilemap.Map, opts RoomOptions) *Room {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultConfig().TickRate
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultConfig().QueueSize
	}
	if opts.Codec == nil {
		opts.Codec = jsonCodec{}
	}
	r := &Room{
		ID:           id,
		store:        game.NewStore(),
		world:        world,
		sessions:     make(map[string]Conn),
		events:       make(chan event, opts.QueueSize),
		lifecycle:    make(chan event, 64),
		latestInputs: make(map[string]game.Input),
		codec:        opts.Codec,
		metrics:      &RoomMetrics{},
		tickRate:     opts.TickRate,
		now:          time.Now,
		quit:         make(chan struct{}),
	}
	rules := game.DefaultRules()
	if opts.Rules != nil {
		rules = *opts.Rules
	}
	r.rules.Store(&rules)

	b, err := r.codec.Encode(MsgMap, MapState{Ground: world.Ground, Decal: world.Decal})
	if err != nil {
		Log.Errorw("encode map", "room", id, "err", err)
	}
	r.mapMsg = b
	return r
}

// Rules 当前玩法参数（任意协程可读）
func (r *Room) Rules() game.Rules { return *r.rules.Load() }

// ErrInvalidRules 参数取值非法
var ErrInvalidRules = errors.New("invalid rules")

// SetRules 热更新玩法参数，下一次 Tick 生效
func (r *Room) SetRules(rules game.Rules) error {
	if rules.Speed < 0 || rules.SnowballSpeed < 0 || rules.SnowballLifetime <= 0 {
		return ErrInvalidRules
	}
	r.rules.Store(&rules)
	return nil
}

func (r *Room) Metrics() *RoomMetrics { return r.metrics }

func (r *Room) TickRate() int { return r.tickRate }

// TickSeq 已执行的 Tick 次数
func (r *Room) TickSeq() int64 { return r.tickSeq.Load() }

// NumPlayers 最近一次 Tick 结束时的玩家数
func (r *Room) NumPlayers() int { return int(r.players.Load()) }

// Join 请求在 Tick 协程中加入玩家
func (r *Room) Join(id string, conn Conn) {
	r.pushLifecycle(joinEvent{id: id, conn: conn})
}

// RequestLeave 请求在 Tick 协程中移除玩家，避免并发改动房间状态
func (r *Room) RequestLeave(id string) {
	r.pushLifecycle(leaveEvent{id: id})
}

// pushLifecycle 阻塞式写入，保证加入/离开一定生效；房间已停止时放弃
func (r *Room) pushLifecycle(e event) {
	select {
	case r.lifecycle <- e:
	case <-r.quit:
	}
}

// HandleFrame 解析一帧客户端消息并投递到事件队列（网络协程调用）
func (r *Room) HandleFrame(id string, b []byte) {
	f, err := r.codec.Decode(b)
	if err != nil {
		r.metrics.IncMalformed()
		return
	}
	e, err := parseEvent(id, f)
	if err != nil {
		r.metrics.IncMalformed()
		Log.Debugw("malformed message", "room", r.ID, "player", id, "type", f.Type, "err", err)
		return
	}
	if e == nil {
		return
	}
	if in, ok := e.(inputEvent); ok {
		r.SetLatestInput(in.id, in.input)
		return
	}
	r.OnEvent(e)
}

// SetLatestInput 记录玩家最新的方向输入，覆盖尚未处理的旧值，下一次 Tick 生效
func (r *Room) SetLatestInput(id string, in game.Input) {
	r.inputMu.Lock()
	r.latestInputs[id] = in
	r.inputMu.Unlock()
}

func (r *Room) takeInputs() map[string]game.Input {
	r.inputMu.Lock()
	defer r.inputMu.Unlock()
	if len(r.latestInputs) == 0 {
		return nil
	}
	out := r.latestInputs
	r.latestInputs = make(map[string]game.Input, len(out))
	return out
}

// OnEvent 入站事件（不立即改变状态），等下一次 Tick 处理
func (r *Room) OnEvent(e event) {
	// 不阻塞：拥塞时丢弃，保证 Tick 准时
	select {
	case r.events <- e:
	default:
		r.metrics.IncChanFullDiscarded()
	}
}

// ProcessEvents 处理当前帧的所有事件（非阻塞 drain）。
// 只消费进入时已排队的事件，Tick 期间新到的事件留给下一帧。
// 先取输入与事件、后取加入/离开：会话的加入总是先于它的任何输入投递，
// 这样本帧取到的每条输入对应的加入一定也在本帧。
func (r *Room) ProcessEvents() {
	inputs := r.takeInputs()
	nEvents := len(r.events)
	nLifecycle := len(r.lifecycle)

	for ; nLifecycle > 0; nLifecycle-- {
		(<-r.lifecycle).apply(r)
	}
	for id, in := range inputs {
		inputEvent{id: id, input: in}.apply(r)
	}
	for ; nEvents > 0; nEvents-- {
		(<-r.events).apply(r)
	}
	r.players.Store(int32(r.store.NumPlayers()))
}

func (e joinEvent) apply(r *Room) {
	p := r.Rules().NewPlayer(e.id, uuid.NewString())
	if !r.store.AddPlayer(p) {
		Log.Warnw("duplicate join", "room", r.ID, "player", e.id)
		e.conn.Close()
		return
	}
	r.sessions[e.id] = e.conn
	if b, err := r.codec.Encode(MsgWelcome, Welcome{ID: e.id, TickRate: r.tickRate}); err == nil {
		e.conn.Enqueue(b)
	}
	if r.mapMsg != nil {
		e.conn.Enqueue(r.mapMsg)
	}
	Log.Infow("player joined", "room", r.ID, "player", e.id, "players", r.store.NumPlayers())
}

func (e leaveEvent) apply(r *Room) {
	if !r.store.RemovePlayer(e.id) {
		r.metrics.IncUnknownActor()
		return
	}
	if c, ok := r.sessions[e.id]; ok {
		c.Close()
		delete(r.sessions, e.id)
	}
	Log.Infow("player left", "room", r.ID, "player", e.id, "players", r.store.NumPlayers())
}

func (e inputEvent) apply(r *Room) {
	if !r.store.SetInput(e.id, e.input) {
		r.metrics.IncUnknownActor()
		return
	}
	r.metrics.IncAccepted()
}

func (e throwEvent) apply(r *Room) {
	if _, err := game.Throw(r.store, e.id, e.angle, r.Rules()); err != nil {
		if errors.Is(err, game.ErrUnknownPlayer) {
			r.metrics.IncUnknownActor()
		} else {
			r.metrics.IncMalformed()
		}
		return
	}
	r.metrics.IncThrows()
}

func (e muteEvent) apply(r *Room) {
	p, ok := r.store.Player(e.id)
	if !ok {
		r.metrics.IncUnknownActor()
		return
	}
	p.IsMuted = e.muted
}

func (e voiceEvent) apply(r *Room) {
	p, ok := r.store.Player(e.id)
	if !ok {
		r.metrics.IncUnknownActor()
		return
	}
	p.VoiceID = e.voiceID
}
