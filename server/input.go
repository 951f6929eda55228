package server

import (
	"errors"
	"math"
	"strconv"

	"snowfight/game"
)

// ErrMalformed 入站消息结构不符合约定
var ErrMalformed = errors.New("malformed message")

// event 由网络协程投递、在 Tick 协程中执行的房间事件
type event interface {
	apply(r *Room)
}

type joinEvent struct {
	id   string
	conn Conn
}

type leaveEvent struct {
	id string
}

type inputEvent struct {
	id    string
	input game.Input
}

type throwEvent struct {
	id    string
	angle float64
}

type muteEvent struct {
	id    string
	muted bool
}

type voiceEvent struct {
	id      string
	voiceID string
}

// 入站 inputs 的结构；四个方向必须全部给出
type inputMessage struct {
	Up    *bool `json:"up" msgpack:"up"`
	Down  *bool `json:"down" msgpack:"down"`
	Left  *bool `json:"left" msgpack:"left"`
	Right *bool `json:"right" msgpack:"right"`
}

// parseEvent 把一帧入站消息解析为房间事件；未知类型返回 nil, nil
func parseEvent(id string, f Frame) (event, error) {
	switch f.Type {
	case MsgInputs:
		var m inputMessage
		if err := f.Data(&m); err != nil {
			return nil, errors.Join(ErrMalformed, err)
		}
		if m.Up == nil || m.Down == nil || m.Left == nil || m.Right == nil {
			return nil, ErrMalformed
		}
		return inputEvent{id: id, input: game.Input{Up: *m.Up, Down: *m.Down, Left: *m.Left, Right: *m.Right}}, nil
	case MsgSnowball:
		var angle *float64
		if err := f.Data(&angle); err != nil {
			return nil, errors.Join(ErrMalformed, err)
		}
		if angle == nil || math.IsNaN(*angle) || math.IsInf(*angle, 0) {
			return nil, ErrMalformed
		}
		return throwEvent{id: id, angle: *angle}, nil
	case MsgMute:
		var muted *bool
		if err := f.Data(&muted); err != nil {
			return nil, errors.Join(ErrMalformed, err)
		}
		if muted == nil {
			return nil, ErrMalformed
		}
		return muteEvent{id: id, muted: *muted}, nil
	case MsgVoiceID:
		var raw any
		if err := f.Data(&raw); err != nil {
			return nil, errors.Join(ErrMalformed, err)
		}
		v, ok := voiceIDString(raw)
		if !ok {
			return nil, ErrMalformed
		}
		return voiceEvent{id: id, voiceID: v}, nil
	default:
		return nil, nil
	}
}

// voiceIDString 语音 ID 允许字符串或数字
func voiceIDString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case int8, int16, int32, uint8, uint16, uint32:
		return strconv.FormatInt(toInt64(v), 10), true
	default:
		return "", false
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	}
	return 0
}
