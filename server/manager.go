package server

import (
	"context"
	"sort"
	"sync"

	"snowfight/tilemap"
)

// DefaultRoom 未指定房间时使用的房间名
const DefaultRoom = "room-1"

// RoomManager 管理多个房间的生命周期；所有房间共享同一张地图
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	world  *tilemap.Map
	cfg    Config
	codec  Codec
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRoomManager(world *tilemap.Map, cfg Config) (*RoomManager, error) {
	codec, err := NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RoomManager{
		rooms:  make(map[string]*Room),
		world:  world,
		cfg:    cfg,
		codec:  codec,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick
func (m *RoomManager) GetOrCreateRoom(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		r = NewRoom(id, m.world, RoomOptions{
			TickRate:  m.cfg.TickRate,
			QueueSize: m.cfg.QueueSize,
			Codec:     m.codec,
		})
		m.rooms[id] = r
		r.StartTicker(m.ctx)
	}
	return r
}

// Room 查找已存在的房间
func (m *RoomManager) Room(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RoomIDs 按名称排序返回所有房间
func (m *RoomManager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown 停止所有房间的 Tick 循环
func (m *RoomManager) Shutdown() {
	m.cancel()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rooms {
		r.Stop()
	}
}
