package internal

import "encoding/json"

// 請求訊息類型
//
// 入站訊息是一個封閉集合：七種請求之外的類型
// 在路由器邊界記日誌後丟棄，不回應、不中斷連接。
const (
	TypeListRooms      = "list-rooms"
	TypeCreateRoom     = "create-room"
	TypeJoinRoom       = "join-room"
	TypeLeaveRoom      = "leave-room"
	TypeCacheEvent     = "cache-event"
	TypeBroadcastEvent = "broadcast-event"
	TypeClearBuffer    = "clear-buffer"
)

// 回應與通知訊息類型
const (
	TypeConnected      = "connected"
	TypeRoomsListed    = "rooms-listed"
	TypeRoomCreated    = "room-created"
	TypeJoinClient     = "join-client"
	TypeJoinBroadcast  = "join-broadcast"
	TypeLeaveClient    = "leave-client"
	TypeLeaveBroadcast = "leave-broadcast"
	TypeEventBroadcast = "event-broadcast"
	TypeError          = "error"
)

// Message 入站訊息外層結構
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response 出站訊息結構
//
// 回應一律攜帶原因代碼；通知（廣播）類訊息的 Reason 為 OK。
type Response struct {
	Type    string `json:"type"`
	Reason  Reason `json:"reason"`
	Message any    `json:"message,omitempty"`
}

// createRoomData create-room 請求的承載資料
type createRoomData struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity,omitempty"`
	Password string `json:"password,omitempty"`
}

// joinRoomData join-room 請求的承載資料
type joinRoomData struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

// connectedBody connected 通知的承載資料
type connectedBody struct {
	ConnID string `json:"conn_id"`
}

// roomCreatedBody room-created 回應的承載資料
type roomCreatedBody struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// joinClientBody join-client 回應的承載資料
type joinClientBody struct {
	Room           string            `json:"room"`
	MemberIDs      []string          `json:"member_ids"`
	BufferedEvents []json.RawMessage `json:"buffered_events"`
}

// memberChangeBody join-broadcast / leave-broadcast 通知的承載資料
type memberChangeBody struct {
	Room   string `json:"room"`
	ConnID string `json:"conn_id"`
}

// encodeResponse 序列化出站訊息
func encodeResponse(msgType string, reason Reason, body any) []byte {
	data, err := json.Marshal(Response{
		Type:    msgType,
		Reason:  reason,
		Message: body,
	})
	if err != nil {
		// 出站結構都是本套件定義的可序列化類型，到不了這裡
		return []byte(`{"type":"error","reason":"Unknown"}`)
	}
	return data
}
