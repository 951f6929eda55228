package server

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec 负责消息信封 {type, data} 的编解码
type Codec interface {
	Name() string
	// FrameType 对应的 WebSocket 帧类型
	FrameType() int
	Encode(kind string, data any) ([]byte, error)
	Decode(b []byte) (Frame, error)
}

// Frame 已拆开信封、尚未解析 data 的入站消息
type Frame struct {
	Type      string
	payload   []byte
	unmarshal func([]byte, any) error
}

// Data 将 data 字段解析到 v；缺失 data 视为格式错误
func (f Frame) Data(v any) error {
	if len(f.payload) == 0 {
		return fmt.Errorf("empty payload for type %q", f.Type)
	}
	return f.unmarshal(f.payload, v)
}

func NewCodec(name string) (Codec, error) {
	switch name {
	case CodecJSON, "":
		return jsonCodec{}, nil
	case CodecMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecJSON }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Encode(kind string, data any) ([]byte, error) {
	if kind == "" {
		return nil, fmt.Errorf("trying to encode envelope without type")
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{kind, data})
}

func (jsonCodec) Decode(b []byte) (Frame, error) {
	if len(b) == 0 {
		return Frame{}, fmt.Errorf("empty frame")
	}
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return Frame{}, err
	}
	return Frame{Type: env.Type, payload: env.Data, unmarshal: json.Unmarshal}, nil
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return CodecMsgpack }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(kind string, data any) ([]byte, error) {
	if kind == "" {
		return nil, fmt.Errorf("trying to encode envelope without type")
	}
	return msgpack.Marshal(struct {
		Type string `msgpack:"type"`
		Data any    `msgpack:"data"`
	}{kind, data})
}

func (msgpackCodec) Decode(b []byte) (Frame, error) {
	if len(b) == 0 {
		return Frame{}, fmt.Errorf("empty frame")
	}
	var env struct {
		Type string             `msgpack:"type"`
		Data msgpack.RawMessage `msgpack:"data"`
	}
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return Frame{}, err
	}
	return Frame{Type: env.Type, payload: env.Data, unmarshal: msgpack.Unmarshal}, nil
}
