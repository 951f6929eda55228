package game

// Rules 玩法参数，可通过管理接口热更新
type Rules struct {
	Speed            float64 `json:"speed"`            // 玩家每 Tick 移动像素
	SnowballSpeed    float64 `json:"snowballSpeed"`    // 雪球每 Tick 移动像素
	SnowballLifetime float64 `json:"snowballLifetime"` // 雪球寿命（毫秒）
	SpawnX           float64 `json:"spawnX"`
	SpawnY           float64 `json:"spawnY"`
}

func DefaultRules() Rules {
	return Rules{
		Speed:            5,
		SnowballSpeed:    7,
		SnowballLifetime: 1000,
		SpawnX:           1500,
		SpawnY:           1000,
	}
}

// NewPlayer 在出生点创建玩家，输入全为 false，未静音
func (r Rules) NewPlayer(id, voiceID string) *Player {
	return &Player{ID: id, X: r.SpawnX, Y: r.SpawnY, VoiceID: voiceID}
}
