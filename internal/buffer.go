package internal

import "encoding/json"

// EventBuffer 房間事件緩衝區
//
// 保存房間內快取過的事件，供遲到加入者回放追上當前狀態：
//   - 按寫入順序保存，不去重
//   - 不設時間或大小上限（由應用邏輯顯式清除）
//   - 隨房間刪除一起銷毀
//
// 緩衝區由其所屬房間獨佔持有，所有讀寫都發生在
// Registry 的全域鎖臨界區內，因此自身不需要加鎖。
type EventBuffer struct {
	entries []json.RawMessage
}

// NewEventBuffer 創建事件緩衝區
func NewEventBuffer() *EventBuffer {
	return &EventBuffer{}
}

// Append 追加一條序列化事件
func (b *EventBuffer) Append(payload json.RawMessage) {
	// 複製一份，避免呼叫端之後覆寫底層切片
	entry := make(json.RawMessage, len(payload))
	copy(entry, payload)
	b.entries = append(b.entries, entry)
}

// Snapshot 返回當前所有事件的副本（保持寫入順序）
func (b *EventBuffer) Snapshot() []json.RawMessage {
	snapshot := make([]json.RawMessage, len(b.entries))
	copy(snapshot, b.entries)
	return snapshot
}

// Clear 整體清空緩衝區
func (b *EventBuffer) Clear() {
	b.entries = nil
}

// Len 返回當前事件數量
func (b *EventBuffer) Len() int {
	return len(b.entries)
}
