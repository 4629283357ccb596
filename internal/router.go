package internal

import (
	"encoding/json"
	"log/slog"
)

// Router 協議路由器
//
// 每條訊息無狀態處理：依 type 區分器解碼為具體請求，
// 一對一分發到 Registry / Broadcaster 的操作，然後：
//   - 永遠直接回應來源連接（list / create / join / leave，成功或失敗原因）
//   - join / leave / cache-event / broadcast-event 成功時
//     額外向房間其他成員扇出狀態變更通知
//
// 無法解碼的承載與未知的 type 在此邊界記日誌後丟棄：
// 不回應、不中斷連接、不影響進程。
type Router struct {
	registry    *Registry
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewRouter 創建協議路由器
func NewRouter(registry *Registry, broadcaster *Broadcaster, logger *slog.Logger) *Router {
	return &Router{
		registry:    registry,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// HandleConnect 連接建立時的處理
//
// 立即下發 connected 通知，攜帶新分配的連接 ID。
func (rt *Router) HandleConnect(conn *Conn) {
	rt.reply(conn, TypeConnected, ReasonOK, connectedBody{ConnID: conn.ID})

	rt.logger.Info("連接已建立", "conn_id", conn.ID)
}

// HandleMessage 處理一條入站訊息
func (rt *Router) HandleMessage(conn *Conn, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		rt.logger.Warn("無法解析的入站訊息",
			"conn_id", conn.ID,
			"error", err)
		return
	}

	switch msg.Type {
	case TypeListRooms:
		rt.handleListRooms(conn)
	case TypeCreateRoom:
		rt.handleCreateRoom(conn, msg.Data)
	case TypeJoinRoom:
		rt.handleJoinRoom(conn, msg.Data)
	case TypeLeaveRoom:
		rt.handleLeaveRoom(conn)
	case TypeCacheEvent:
		rt.handleCacheEvent(conn, msg.Data)
	case TypeBroadcastEvent:
		rt.handleBroadcastEvent(conn, msg.Data)
	case TypeClearBuffer:
		rt.registry.ClearBuffer(conn) // 無顯式確認
	default:
		rt.logger.Warn("未知的訊息類型",
			"type", msg.Type,
			"conn_id", conn.ID)
	}
}

// HandleDisconnect 連接關閉時的清理
//
// 正常關閉與心跳超時共用此路徑，且保證只執行一次：
// 合成一次 leave-room（離開當前房間並向剩餘成員廣播離開通知），
// 然後關閉底層傳輸。
func (rt *Router) HandleDisconnect(conn *Conn) {
	conn.runDisconnect(func() {
		result, err := rt.registry.Leave(conn)
		if err == nil && !result.RoomDeleted {
			rt.broadcaster.Broadcast(result.Remaining,
				encodeResponse(TypeLeaveBroadcast, ReasonOK, memberChangeBody{
					Room:   result.RoomName,
					ConnID: conn.ID,
				}), nil)
		}

		conn.Close()

		rt.logger.Info("連接已斷開", "conn_id", conn.ID)
	})
}

// handleListRooms 處理 list-rooms 請求
func (rt *Router) handleListRooms(conn *Conn) {
	rt.reply(conn, TypeRoomsListed, ReasonOK, rt.registry.List())
}

// handleCreateRoom 處理 create-room 請求
func (rt *Router) handleCreateRoom(conn *Conn, data json.RawMessage) {
	var req createRoomData
	if err := json.Unmarshal(data, &req); err != nil || req.Name == "" {
		rt.logger.Warn("無效的 create-room 請求",
			"conn_id", conn.ID,
			"error", err)
		return
	}

	capacity, err := rt.registry.Create(conn, req.Name, req.Capacity, req.Password)
	if err != nil {
		rt.replyError(conn, err)
		return
	}

	rt.reply(conn, TypeRoomCreated, ReasonOK, roomCreatedBody{Name: req.Name, Capacity: capacity})
}

// handleJoinRoom 處理 join-room 請求
func (rt *Router) handleJoinRoom(conn *Conn, data json.RawMessage) {
	var req joinRoomData
	if err := json.Unmarshal(data, &req); err != nil || req.Name == "" {
		rt.logger.Warn("無效的 join-room 請求",
			"conn_id", conn.ID,
			"error", err)
		return
	}

	result, err := rt.registry.Join(conn, req.Name, req.Password)
	if err != nil {
		rt.replyError(conn, err)
		return
	}

	// 先回應加入者（攜帶成員列表與回放快照），再通知其他成員
	rt.reply(conn, TypeJoinClient, ReasonOK, joinClientBody{
		Room:           req.Name,
		MemberIDs:      result.MemberIDs,
		BufferedEvents: result.Buffered,
	})

	rt.broadcaster.Broadcast(result.Others,
		encodeResponse(TypeJoinBroadcast, ReasonOK, memberChangeBody{
			Room:   req.Name,
			ConnID: conn.ID,
		}), nil)
}

// handleLeaveRoom 處理 leave-room 請求
func (rt *Router) handleLeaveRoom(conn *Conn) {
	result, err := rt.registry.Leave(conn)
	if err != nil {
		rt.replyError(conn, err)
		return
	}

	rt.reply(conn, TypeLeaveClient, ReasonOK, memberChangeBody{
		Room:   result.RoomName,
		ConnID: conn.ID,
	})

	// 房間被刪除時沒有剩餘成員需要通知
	if !result.RoomDeleted {
		rt.broadcaster.Broadcast(result.Remaining,
			encodeResponse(TypeLeaveBroadcast, ReasonOK, memberChangeBody{
				Room:   result.RoomName,
				ConnID: conn.ID,
			}), nil)
	}
}

// handleCacheEvent 處理 cache-event 請求
//
// 事件寫入房間緩衝區後廣播給所有成員（含發送者）。
// 缺少承載的事件在此丟棄：空承載一旦入緩衝區，
// 之後所有 join-client 回應的序列化都會失敗。
func (rt *Router) handleCacheEvent(conn *Conn, data json.RawMessage) {
	if len(data) == 0 {
		rt.logger.Warn("無效的 cache-event 請求：缺少承載", "conn_id", conn.ID)
		return
	}

	members, err := rt.registry.CacheEvent(conn, data)
	if err != nil {
		rt.replyError(conn, err)
		return
	}

	rt.broadcaster.Broadcast(members,
		encodeResponse(TypeEventBroadcast, ReasonOK, data), nil)
}

// handleBroadcastEvent 處理 broadcast-event 請求
//
// 事件不寫入緩衝區，廣播給除發送者以外的所有成員。
func (rt *Router) handleBroadcastEvent(conn *Conn, data json.RawMessage) {
	if len(data) == 0 {
		rt.logger.Warn("無效的 broadcast-event 請求：缺少承載", "conn_id", conn.ID)
		return
	}

	members, err := rt.registry.BroadcastTargets(conn)
	if err != nil {
		rt.replyError(conn, err)
		return
	}

	rt.broadcaster.Broadcast(members,
		encodeResponse(TypeEventBroadcast, ReasonOK, data), conn)
}

// reply 直接回應來源連接
func (rt *Router) reply(conn *Conn, msgType string, reason Reason, body any) {
	if err := conn.Send(encodeResponse(msgType, reason, body)); err != nil {
		rt.logger.Warn("發送回應失敗",
			"conn_id", conn.ID,
			"type", msgType,
			"error", err)
	}
}

// replyError 將註冊表錯誤轉為 error 回應
func (rt *Router) replyError(conn *Conn, err error) {
	rt.reply(conn, TypeError, ReasonOf(err), err.Error())
}
