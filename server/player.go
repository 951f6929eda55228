package server

import (
	"snowfight/game"
	"snowfight/tilemap"
)

// 出站消息类型，与原客户端的事件名一致
const (
	MsgWelcome   = "welcome"
	MsgMap       = "map"
	MsgPlayers   = "players"
	MsgSnowballs = "snowballs"
)

// 入站消息类型
const (
	MsgInputs   = "inputs"
	MsgSnowball = "snowball"
	MsgMute     = "mute"
	MsgVoiceID  = "voiceId"
)

// PlayerState 为广播给客户端的玩家状态
type PlayerState struct {
	ID      string  `json:"id" msgpack:"id"`
	X       float64 `json:"x" msgpack:"x"`
	Y       float64 `json:"y" msgpack:"y"`
	IsMuted bool    `json:"isMuted" msgpack:"isMuted"`
	VoiceID string  `json:"voiceId" msgpack:"voiceId"`
}

// SnowballState 为广播给客户端的雪球状态
type SnowballState struct {
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	Angle    float64 `json:"angle" msgpack:"angle"`
	TimeLeft float64 `json:"timeLeft" msgpack:"timeLeft"`
	PlayerID string  `json:"playerId" msgpack:"playerId"`
}

// Welcome 连接建立后告知客户端自己的 ID
type Welcome struct {
	ID       string `json:"id" msgpack:"id"`
	TickRate int    `json:"tickRate" msgpack:"tickRate"`
}

// MapState 连接建立后发送一次的地图数据
type MapState struct {
	Ground [][]tilemap.Tile  `json:"ground" msgpack:"ground"`
	Decal  [][]*tilemap.Tile `json:"decal" msgpack:"decal"`
}

func playerStates(ps []*game.Player) []PlayerState {
	out := make([]PlayerState, 0, len(ps))
	for _, p := range ps {
		out = append(out, PlayerState{ID: p.ID, X: p.X, Y: p.Y, IsMuted: p.IsMuted, VoiceID: p.VoiceID})
	}
	return out
}

func snowballStates(bs []*game.Snowball) []SnowballState {
	out := make([]SnowballState, 0, len(bs))
	for _, b := range bs {
		out = append(out, SnowballState{X: b.X, Y: b.Y, Angle: b.Angle, TimeLeft: b.TimeLeft, PlayerID: b.PlayerID})
	}
	return out
}
