package internal

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 單條入站訊息的大小上限
	maxMessageSize = 64 * 1024

	// 單次寫入的期限
	writeWait = 10 * time.Second

	// 出站緩衝大小：緩衝滿時丟幀（慢客戶端不拖累房間）
	sendBufferSize = 256
)

// ErrTransportClosed 傳輸通道已關閉
var ErrTransportClosed = errors.New("傳輸通道已關閉")

// ErrSendBufferFull 出站緩衝已滿，該幀被丟棄
var ErrSendBufferFull = errors.New("出站緩衝已滿")

// Hub WebSocket 連接中心
//
// 持有進程範圍的連接集合：
//   - 接受連接：升級 → 包裝為 Conn → 註冊 → 納入心跳監控 → 下發 connected
//   - 每條連接一個讀取循環：入站訊息順序交給 Router 處理
//   - 讀取循環結束（客戶端關閉或被強制斷線）走統一的斷線清理路徑
type Hub struct {
	router   *Router
	monitor  *HeartbeatMonitor
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*Conn // conn_id -> Conn
}

// NewHub 創建 WebSocket Hub
func NewHub(router *Router, monitor *HeartbeatMonitor, logger *slog.Logger) *Hub {
	return &Hub{
		router:  router,
		monitor: monitor,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[string]*Conn),
	}
}

// ServeWS 處理 WebSocket 連接
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	transport := newWSTransport(ws)
	conn := NewConn(transport)

	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()

	h.monitor.Track(conn)

	go transport.writePump(h.logger)

	// 先下發 connected 通知（攜帶連接 ID）再啟動讀取循環：
	// 保證 connected 是客戶端收到的第一幀，不會被首條請求的回應搶先
	h.router.HandleConnect(conn)

	go h.readPump(conn, transport)
}

// readPump 讀取循環
//
// 每條連接的入站訊息在此順序處理（連接自身的請求按到達順序執行）。
// 循環結束時走統一的斷線清理路徑：心跳超時強制關閉底層連接
// 也會讓 ReadMessage 返回錯誤，從而匯入同一條路徑。
func (h *Hub) readPump(conn *Conn, transport *wsTransport) {
	defer func() {
		h.monitor.Untrack(conn)

		h.mu.Lock()
		delete(h.conns, conn.ID)
		h.mu.Unlock()

		h.router.HandleDisconnect(conn)
	}()

	transport.ws.SetReadLimit(maxMessageSize)

	// 收到探測回應時重置活性標誌
	transport.ws.SetPongHandler(func(string) error {
		conn.TouchAlive()
		return nil
	})

	for {
		messageType, message, err := transport.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket 讀取錯誤",
					"conn_id", conn.ID,
					"error", err)
			}
			return
		}

		if messageType == websocket.TextMessage {
			h.router.HandleMessage(conn, message)
		}
	}
}

// ConnCount 返回當前連接數
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Stop 停止 Hub
//
// 對每條連接執行一次斷線清理（離開房間 + 關閉傳輸）。
func (h *Hub) Stop() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[string]*Conn)
	h.mu.Unlock()

	for _, conn := range conns {
		h.monitor.Untrack(conn)
		h.router.HandleDisconnect(conn)
	}

	h.logger.Info("WebSocket Hub 已停止")
}

// wsTransport gorilla/websocket 的 Transport 適配器
//
// 發送經由緩衝 channel 交給 writePump 串行寫出：
//   - Send 非阻塞，緩衝滿時丟幀（盡力而為交付）
//   - Ping 使用控制幀（WriteControl 允許與寫循環併發）
type wsTransport struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// newWSTransport 包裝一條已升級的 WebSocket 連接
func newWSTransport(ws *websocket.Conn) *wsTransport {
	return &wsTransport{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send 將一幀資料排入出站緩衝
func (t *wsTransport) Send(data []byte) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	select {
	case t.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Ping 發送一次 WebSocket Ping 控制幀
func (t *wsTransport) Ping() error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	return t.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close 關閉傳輸通道
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
	})
	return t.ws.Close()
}

// writePump 寫入循環
func (t *wsTransport) writePump(logger *slog.Logger) {
	defer func() {
		_ = t.ws.Close()
	}()

	for {
		select {
		case message := <-t.send:
			if err := t.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := t.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量送出佇列中累積的訊息
			n := len(t.send)
			for i := 0; i < n; i++ {
				if err := t.ws.WriteMessage(websocket.TextMessage, <-t.send); err != nil {
					logger.Error("發送訊息失敗", "error", err)
					return
				}
			}

		case <-t.done:
			// 嘗試發送關閉訊息，忽略錯誤（連接可能已關閉）
			deadline := time.Now().Add(time.Second)
			_ = t.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}
