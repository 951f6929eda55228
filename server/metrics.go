package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	InputsAccepted    int64 // 被接受的输入数
	Throws            int64 // 生成的雪球数
	Hits              int64 // 命中次数
	Malformed         int64 // 格式错误被忽略的消息数
	UnknownActor      int64 // 引用不存在玩家的事件数
	ChanFullDiscarded int64 // 因通道满被丢弃的输入数
	Overruns          int64 // 耗时超过名义周期的 Tick 数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncAccepted() { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *RoomMetrics) IncThrows() { atomic.AddInt64(&m.Throws, 1) }
func (m *RoomMetrics) AddHits(n int) { atomic.AddInt64(&m.Hits, int64(n)) }
func (m *RoomMetrics) IncMalformed() { atomic.AddInt64(&m.Malformed, 1) }
func (m *RoomMetrics) IncUnknownActor() { atomic.AddInt64(&m.UnknownActor, 1) }
func (m *RoomMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *RoomMetrics) IncOverruns() { atomic.AddInt64(&m.Overruns, 1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"inputs_accepted":     atomic.LoadInt64(&m.InputsAccepted),
		"throws":              atomic.LoadInt64(&m.Throws),
		"hits":                atomic.LoadInt64(&m.Hits),
		"malformed":           atomic.LoadInt64(&m.Malformed),
		"unknown_actor":       atomic.LoadInt64(&m.UnknownActor),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"overruns":            atomic.LoadInt64(&m.Overruns),
		"avg_tick_ms":         avgMs,
	}
}
