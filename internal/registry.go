package internal

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
)

// 系統設計問題：
//   如何在多條併發連接之間維護房間狀態的一致性？
//
// 核心挑戰：
//   1. 檢查後變更：容量檢查、密碼驗證、重複加入檢查必須與變更原子完成
//   2. 全域不變量：一條連接同時最多屬於一個房間（跨房間強制）
//   3. 生命週期：空房間不允許存在（最後一位成員離開即刪除）
//   4. 回放一致性：加入時的緩衝區快照不能與後續即時事件重複或遺漏
//
// 設計方案：
//   ✅ 全域互斥鎖 - 粗粒度但正確（房間映射 + 成員資格 + 緩衝區同鎖保護）
//   ✅ 臨界區內完成 檢查 + 變更 - 消除兩個加入同時通過容量檢查的競態
//   ✅ 加入與快照同臨界區 - 回放內容精確反映加入瞬間的緩衝區狀態
//   ✅ 摘要驗證委託 PasswordGuard - 房間不保存明文密碼

// Room 房間
//
// 不變量（每次操作結束後都成立）：
//   - len(members) <= Capacity
//   - 成員數為零的房間不存在於註冊表中
//   - members 保持加入順序（影響成員列表回應）
type Room struct {
	Name           string
	Capacity       int
	passwordDigest []byte // nil 表示開放房間
	members        []*Conn
	buffer         *EventBuffer
}

// requiresPassword 房間是否設有密碼
func (r *Room) requiresPassword() bool {
	return r.passwordDigest != nil
}

// memberIDs 返回按加入順序排列的成員 ID 列表
func (r *Room) memberIDs() []string {
	ids := make([]string, 0, len(r.members))
	for _, m := range r.members {
		ids = append(ids, m.ID)
	}
	return ids
}

// removeMember 從成員列表移除連接，保持其餘成員的順序
func (r *Room) removeMember(conn *Conn) {
	for i, m := range r.members {
		if m == conn {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

// otherMembers 返回除指定連接以外的成員快照
func (r *Room) otherMembers(exclude *Conn) []*Conn {
	others := make([]*Conn, 0, len(r.members))
	for _, m := range r.members {
		if m != exclude {
			others = append(others, m)
		}
	}
	return others
}

// RoomInfo 房間列表項
type RoomInfo struct {
	Name             string `json:"name"`
	MemberCount      int    `json:"member_count"`
	Capacity         int    `json:"capacity"`
	RequiresPassword bool   `json:"requires_password"`
}

// JoinResult 加入房間的結果
type JoinResult struct {
	// 加入後的成員 ID 列表（含加入者，保持加入順序）
	MemberIDs []string

	// 加入瞬間的事件緩衝區快照（供客戶端回放追上狀態）
	Buffered []json.RawMessage

	// 需要接收 join-broadcast 的其他成員
	Others []*Conn
}

// LeaveResult 離開房間的結果
type LeaveResult struct {
	RoomName string

	// 移除前的成員數（呼叫端據此決定是否廣播離開通知）
	PriorMembers int

	// 房間仍存在時的剩餘成員
	Remaining []*Conn

	// 房間是否因為變空而被刪除
	RoomDeleted bool
}

// Registry 房間註冊表
//
// 進程範圍的中心同步點：房間映射、各房間的成員列表與
// 事件緩衝區、連接的成員資格，全部只允許在此處的
// 鎖臨界區內變更。
type Registry struct {
	mu              sync.Mutex
	rooms           map[string]*Room
	guard           *PasswordGuard
	defaultCapacity int
	logger          *slog.Logger
}

// NewRegistry 創建房間註冊表
func NewRegistry(guard *PasswordGuard, defaultCapacity int, logger *slog.Logger) *Registry {
	if defaultCapacity < 1 {
		defaultCapacity = 1
	}
	return &Registry{
		rooms:           make(map[string]*Room),
		guard:           guard,
		defaultCapacity: defaultCapacity,
		logger:          logger,
	}
}

// List 返回所有房間的唯讀快照（按名稱排序）
func (reg *Registry) List() []RoomInfo {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	infos := make([]RoomInfo, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		infos = append(infos, RoomInfo{
			Name:             room.Name,
			MemberCount:      len(room.members),
			Capacity:         room.Capacity,
			RequiresPassword: room.requiresPassword(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return infos
}

// Create 創建房間，創建者成為第一位成員
//
// capacity <= 0 時使用預設容量；password 為空表示開放房間。
// 返回生效的容量（預設值的解析只發生在這裡）。
// 密碼摘要在進入臨界區前計算（bcrypt 較慢，不佔用鎖）。
func (reg *Registry) Create(conn *Conn, name string, capacity int, password string) (int, error) {
	var digest []byte
	if password != "" {
		d, err := reg.guard.Digest(password)
		if err != nil {
			return 0, err
		}
		digest = d
	}

	if capacity <= 0 {
		capacity = reg.defaultCapacity
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	// 全域唯一成員資格：已在房間中的連接不能創建新房間
	if conn.room != "" {
		return 0, ErrAlreadyInRoom
	}

	if _, exists := reg.rooms[name]; exists {
		return 0, ErrRoomExists
	}

	room := &Room{
		Name:           name,
		Capacity:       capacity,
		passwordDigest: digest,
		members:        []*Conn{conn},
		buffer:         NewEventBuffer(),
	}
	reg.rooms[name] = room
	conn.room = name

	reg.logger.Info("房間已創建",
		"room", name,
		"capacity", capacity,
		"has_password", digest != nil,
		"conn_id", conn.ID)

	return capacity, nil
}

// Join 加入房間
//
// 檢查順序：AlreadyInRoom → NotFound → Full → InvalidPassword。
// 成員追加與緩衝區快照在同一臨界區內完成：
// 快照精確反映加入瞬間的緩衝區狀態，之後廣播的即時事件
// 不會與快照內容重複，也不會有事件兩頭遺漏。
func (reg *Registry) Join(conn *Conn, name, password string) (*JoinResult, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if conn.room != "" {
		return nil, ErrAlreadyInRoom
	}

	room, exists := reg.rooms[name]
	if !exists {
		return nil, ErrRoomNotFound
	}

	if len(room.members) >= room.Capacity {
		return nil, ErrRoomFull
	}

	if room.requiresPassword() && !reg.guard.Verify(password, room.passwordDigest) {
		return nil, ErrInvalidPassword
	}

	others := room.otherMembers(nil)
	room.members = append(room.members, conn)
	conn.room = name

	reg.logger.Info("連接加入房間",
		"room", name,
		"conn_id", conn.ID,
		"members", len(room.members))

	return &JoinResult{
		MemberIDs: room.memberIDs(),
		Buffered:  room.buffer.Snapshot(),
		Others:    others,
	}, nil
}

// Leave 離開當前房間
//
// 成員資格無論房間是否還存在都會被清除；
// 房間變空時連同其事件緩衝區一起從註冊表刪除。
func (reg *Registry) Leave(conn *Conn) (*LeaveResult, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if conn.room == "" {
		return nil, ErrNotInRoom
	}

	name := conn.room
	conn.room = ""

	room, exists := reg.rooms[name]
	if !exists {
		// 成員資格已過時（房間被其他路徑刪除），視為已離開
		return &LeaveResult{RoomName: name, RoomDeleted: true}, nil
	}

	prior := len(room.members)
	room.removeMember(conn)

	if len(room.members) == 0 {
		delete(reg.rooms, name)
		reg.logger.Info("房間已刪除（無成員）", "room", name)
		return &LeaveResult{RoomName: name, PriorMembers: prior, RoomDeleted: true}, nil
	}

	reg.logger.Info("連接離開房間",
		"room", name,
		"conn_id", conn.ID,
		"members", len(room.members))

	return &LeaveResult{
		RoomName:     name,
		PriorMembers: prior,
		Remaining:    room.otherMembers(nil),
	}, nil
}

// CacheEvent 將事件寫入當前房間的緩衝區
//
// 返回需要接收 event-broadcast 的成員快照（含發送者）。
func (reg *Registry) CacheEvent(conn *Conn, payload json.RawMessage) ([]*Conn, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, err := reg.roomOfLocked(conn)
	if err != nil {
		return nil, err
	}

	room.buffer.Append(payload)
	return room.otherMembers(nil), nil
}

// BroadcastTargets 返回當前房間的成員快照（供 broadcast-event 分發）
func (reg *Registry) BroadcastTargets(conn *Conn) ([]*Conn, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, err := reg.roomOfLocked(conn)
	if err != nil {
		return nil, err
	}

	return room.otherMembers(nil), nil
}

// ClearBuffer 清空當前房間的事件緩衝區
//
// 成員資格過時（房間已被刪除）時視為 no-op，不是錯誤：
// 客戶端可能在房間被刪除之後才送出 clear-buffer。
func (reg *Registry) ClearBuffer(conn *Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if conn.room == "" {
		return
	}

	room, exists := reg.rooms[conn.room]
	if !exists {
		return
	}

	room.buffer.Clear()
	reg.logger.Debug("事件緩衝區已清空", "room", room.Name, "conn_id", conn.ID)
}

// RoomOf 返回連接當前所在的房間名稱
func (reg *Registry) RoomOf(conn *Conn) (string, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return conn.room, conn.room != ""
}

// Stats 返回統計資訊
func (reg *Registry) Stats() map[string]any {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	totalMembers := 0
	totalBuffered := 0
	for _, room := range reg.rooms {
		totalMembers += len(room.members)
		totalBuffered += room.buffer.Len()
	}

	return map[string]any{
		"total_rooms":    len(reg.rooms),
		"total_members":  totalMembers,
		"total_buffered": totalBuffered,
	}
}

// roomOfLocked 解析連接的成員資格（需要持有鎖）
//
// 沒有成員資格、或成員資格指向的房間已不存在，
// 對事件操作而言都等同於「尚未加入房間」。
func (reg *Registry) roomOfLocked(conn *Conn) (*Room, error) {
	if conn.room == "" {
		return nil, ErrNoRoomJoined
	}

	room, exists := reg.rooms[conn.room]
	if !exists {
		return nil, ErrNoRoomJoined
	}

	return room, nil
}
