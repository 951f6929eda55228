package server

// Broadcast 将当前世界状态全量广播给所有玩家：players 与 snowballs 各一条消息
func (r *Room) Broadcast() {
	if len(r.sessions) == 0 {
		return
	}
	players, err := r.codec.Encode(MsgPlayers, playerStates(r.store.Players()))
	if err != nil {
		Log.Errorw("encode players", "room", r.ID, "err", err)
		return
	}
	snowballs, err := r.codec.Encode(MsgSnowballs, snowballStates(r.store.Snowballs()))
	if err != nil {
		Log.Errorw("encode snowballs", "room", r.ID, "err", err)
		return
	}
	for _, c := range r.sessions {
		c.Enqueue(players)
		c.Enqueue(snowballs)
	}
}
