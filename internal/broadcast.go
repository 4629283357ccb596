package internal

import "log/slog"

// Broadcaster 房間廣播器
//
// 對成員快照做盡力而為的扇出：
//   - 可選排除發送者
//   - 跳過已關閉的連接（活性過濾）
//   - 單一成員發送失敗只記日誌，不影響其他成員
//   - 不收集確認（盡力而為交付是明確的設計邊界）
//
// 發送本身是非阻塞的（WebSocket 適配器經由緩衝 channel 送出，
// 緩衝滿時丟幀），慢客戶端不會拖住整個房間。
type Broadcaster struct {
	logger *slog.Logger
}

// NewBroadcaster 創建廣播器
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// Broadcast 將 payload 發送給 members 中的每一位成員
//
// exclude 不為 nil 時跳過該連接。
func (b *Broadcaster) Broadcast(members []*Conn, payload []byte, exclude *Conn) {
	for _, member := range members {
		if member == exclude || member.Closed() {
			continue
		}
		if err := member.Send(payload); err != nil {
			b.logger.Warn("廣播發送失敗",
				"conn_id", member.ID,
				"error", err)
		}
	}
}
