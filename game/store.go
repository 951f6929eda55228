package game

// Store 玩家与雪球的注册表。
// 不加锁：只允许房间的 Tick 协程读写。
type Store struct {
	players   map[string]*Player
	order     []*Player // 加入顺序，决定命中判定的遍历顺序
	snowballs []*Snowball
}

func NewStore() *Store {
	return &Store{players: make(map[string]*Player)}
}

// AddPlayer 已存在同 ID 时返回 false
func (s *Store) AddPlayer(p *Player) bool {
	if _, ok := s.players[p.ID]; ok {
		return false
	}
	s.players[p.ID] = p
	s.order = append(s.order, p)
	return true
}

// RemovePlayer 移除玩家；其已投出的雪球保留
func (s *Store) RemovePlayer(id string) bool {
	p, ok := s.players[id]
	if !ok {
		return false
	}
	delete(s.players, id)
	for i, q := range s.order {
		if q == p {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) Player(id string) (*Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// Players 按加入顺序返回；调用方不得修改切片本身
func (s *Store) Players() []*Player { return s.order }

func (s *Store) NumPlayers() int { return len(s.order) }

// SetInput 覆盖玩家的输入状态
func (s *Store) SetInput(id string, in Input) bool {
	p, ok := s.players[id]
	if !ok {
		return false
	}
	p.Input = in
	return true
}

func (s *Store) AddSnowball(b *Snowball) {
	s.snowballs = append(s.snowballs, b)
}

func (s *Store) Snowballs() []*Snowball { return s.snowballs }

// PruneSnowballs 原地删除寿命耗尽的雪球，返回删除数量
func (s *Store) PruneSnowballs() int {
	kept := s.snowballs[:0]
	for _, b := range s.snowballs {
		if b.TimeLeft > 0 {
			kept = append(kept, b)
		}
	}
	removed := len(s.snowballs) - len(kept)
	for i := len(kept); i < len(s.snowballs); i++ {
		s.snowballs[i] = nil
	}
	s.snowballs = kept
	return removed
}
