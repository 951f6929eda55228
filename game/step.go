package game

import (
	"errors"
	"math"
)

// HitSentinel 命中后写入雪球剩余寿命，保证本 Tick 被清除
const HitSentinel = -1

var (
	ErrUnknownPlayer = errors.New("game: unknown player")
	ErrInvalidAngle  = errors.New("game: angle must be finite")
)

// StepResult 单次推进的副产物，供日志与指标使用
type StepResult struct {
	Hits    []Hit
	Expired int // 本 Tick 清除的雪球数（含命中）
}

// Step 推进一次世界：移动玩家 → 推进雪球 → 命中判定 → 清除过期雪球。
// delta 为距上一次推进的实际毫秒数，只作用于雪球寿命；
// 位移按 Tick 计，与固定的逻辑帧率配套。
func Step(st *Store, g *Grid, rules Rules, delta float64) StepResult {
	size := g.TileSize()
	for _, p := range st.Players() {
		movePlayer(p, g, rules.Speed, size)
	}

	var res StepResult
	for _, b := range st.Snowballs() {
		b.X += math.Cos(b.Angle) * rules.SnowballSpeed
		b.Y += math.Sin(b.Angle) * rules.SnowballSpeed
		b.TimeLeft -= delta

		if victim := firstHit(st, b, size); victim != nil {
			victim.X = 0
			victim.Y = 0
			b.TimeLeft = HitSentinel
			res.Hits = append(res.Hits, Hit{Thrower: b.PlayerID, Victim: victim.ID})
		}
	}
	res.Expired = st.PruneSnowballs()
	return res
}

// movePlayer 先竖直后水平，两个轴各自独立地撞墙回退
func movePlayer(p *Player, g *Grid, speed, size float64) {
	in := p.Input

	prevY := p.Y
	if in.Up {
		p.Y -= speed
	} else if in.Down {
		p.Y += speed
	}
	if p.Y != prevY && CollidesWithMap(p.Footprint(size), g) {
		p.Y = prevY
	}

	prevX := p.X
	if in.Left {
		p.X -= speed
	} else if in.Right {
		p.X += speed
	}
	if p.X != prevX && CollidesWithMap(p.Footprint(size), g) {
		p.X = prevX
	}
}

// firstHit 按加入顺序找到第一个被击中的非投掷者
func firstHit(st *Store, b *Snowball, size float64) *Player {
	half := size / 2
	for _, p := range st.Players() {
		if p.ID == b.PlayerID {
			continue
		}
		if math.Hypot(p.X+half-b.X, p.Y+half-b.Y) <= half {
			return p
		}
	}
	return nil
}

// Throw 在投掷者当前位置生成一个雪球
func Throw(st *Store, playerID string, angle float64, rules Rules) (*Snowball, error) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return nil, ErrInvalidAngle
	}
	p, ok := st.Player(playerID)
	if !ok {
		return nil, ErrUnknownPlayer
	}
	b := &Snowball{
		PlayerID: playerID,
		X:        p.X,
		Y:        p.Y,
		Angle:    angle,
		TimeLeft: rules.SnowballLifetime,
	}
	st.AddSnowball(b)
	return b, nil
}
