package server

import (
	"context"
	"errors"
	"time"

	"snowfight/game"
)

// ErrRoomRunning 房间的 Tick 循环已在运行
var ErrRoomRunning = errors.New("room ticker already running")

func (r *Room) period() time.Duration {
	return time.Second / time.Duration(r.tickRate)
}

// StartTicker 在独立协程中启动房间的 Tick 循环，重复调用无效
func (r *Room) StartTicker(ctx context.Context) {
	if r.running.Load() {
		return
	}
	go func() {
		if err := r.Run(ctx); err != nil && !errors.Is(err, ErrRoomRunning) {
			Log.Errorw("room ticker stopped", "room", r.ID, "err", err)
		}
	}()
}

// Run 阻塞执行 Tick 循环，直到 ctx 取消或 Stop 被调用。
// 每次触发使用实际流逝的时间作为 delta，定时器抖动不会改变游戏速度。
func (r *Room) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRoomRunning
	}
	defer r.running.Store(false)

	ticker := time.NewTicker(r.period())
	defer ticker.Stop()
	r.last = r.now()
	Log.Infow("room ticker started", "room", r.ID, "tickRate", r.tickRate)

	for {
		select {
		case <-ctx.Done():
			Log.Infow("room ticker stopped", "room", r.ID, "tick", r.TickSeq())
			return nil
		case <-r.quit:
			return nil
		case <-ticker.C:
			r.step(r.now())
		}
	}
}

// Stop 停止后续 Tick；正在执行的 Tick 不回滚
func (r *Room) Stop() {
	r.stop.Do(func() { close(r.quit) })
}

// step 单次 Tick：处理事件 → 推进世界 → 广播结果
func (r *Room) step(now time.Time) {
	delta := now.Sub(r.last)
	r.last = now
	start := time.Now()

	r.ProcessEvents()
	res := game.Step(r.store, r.world.Grid, r.Rules(), float64(delta)/float64(time.Millisecond))
	for _, h := range res.Hits {
		Log.Debugw("snowball hit", "room", r.ID, "thrower", h.Thrower, "victim", h.Victim)
	}
	r.metrics.AddHits(len(res.Hits))
	r.Broadcast()

	r.tickSeq.Add(1)
	elapsed := time.Since(start)
	r.metrics.AddTick(elapsed.Nanoseconds())
	// 超时不算错误，下一次 Tick 的 delta 会相应变大
	if elapsed > r.period() {
		r.metrics.IncOverruns()
		Log.Warnw("tick overrun", "room", r.ID, "elapsed", elapsed, "period", r.period())
	}
}
