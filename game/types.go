package game

// Input 客户端四向按键状态，最后一次收到的值覆盖之前的值
type Input struct {
	Up    bool
	Down  bool
	Left  bool
	Right bool
}

// Player 一个连接对应一个玩家（服务端权威状态）
type Player struct {
	ID      string
	X       float64
	Y       float64
	Input   Input
	VoiceID string
	IsMuted bool
}

// Footprint 玩家碰撞框，边长等于格子边长
func (p *Player) Footprint(size float64) Rect {
	return Rect{X: p.X, Y: p.Y, W: size, H: size}
}

// Snowball 飞行中的雪球
type Snowball struct {
	PlayerID string  // 投掷者
	X        float64
	Y        float64
	Angle    float64 // 弧度，生命周期内不变
	TimeLeft float64 // 剩余寿命（毫秒）
}

// Hit 一次命中记录
type Hit struct {
	Thrower string
	Victim  string
}
