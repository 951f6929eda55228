package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 提供房间玩法参数的读取与更新（热更新基本规则）
// GET /admin/config?room=room-1  返回当前配置
// POST /admin/config?room=room-1 以 JSON 载荷更新部分字段
func (m *RoomManager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = DefaultRoom
	}
	room := m.GetOrCreateRoom(roomID)

	type cfg struct {
		Speed            *float64 `json:"speed,omitempty"`
		SnowballSpeed    *float64 `json:"snowballSpeed,omitempty"`
		SnowballLifetime *float64 `json:"snowballLifetime,omitempty"`
		SpawnX           *float64 `json:"spawnX,omitempty"`
		SpawnY           *float64 `json:"spawnY,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"room":     roomID,
			"tickRate": room.TickRate(),
			"rules":    room.Rules(),
		})
		return
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		rules := room.Rules()
		if body.Speed != nil {
			rules.Speed = *body.Speed
		}
		if body.SnowballSpeed != nil {
			rules.SnowballSpeed = *body.SnowballSpeed
		}
		if body.SnowballLifetime != nil {
			rules.SnowballLifetime = *body.SnowballLifetime
		}
		if body.SpawnX != nil {
			rules.SpawnX = *body.SpawnX
		}
		if body.SpawnY != nil {
			rules.SpawnY = *body.SpawnY
		}
		if err := room.SetRules(rules); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "rules": rules})
		Log.Infow("config updated", "room", roomID, "speed", rules.Speed,
			"snowballSpeed", rules.SnowballSpeed, "snowballLifetime", rules.SnowballLifetime,
			"spawnX", rules.SpawnX, "spawnY", rules.SpawnY)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}

// HandleMetrics 输出房间运行指标；未指定 room 时输出全部房间
// GET /metrics?room=room-1
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	ids := m.RoomIDs()
	if roomID := r.URL.Query().Get("room"); roomID != "" {
		ids = []string{roomID}
	}
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		room, ok := m.Room(id)
		if !ok {
			http.Error(w, "unknown room", http.StatusNotFound)
			return
		}
		out = append(out, map[string]any{
			"room":    id,
			"tick":    room.TickSeq(),
			"players": room.NumPlayers(),
			"metrics": room.Metrics().Snapshot(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
