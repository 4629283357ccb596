package internal

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Transport 抽象的雙向傳輸通道
//
// 協調層不關心底層的封包格式與握手機制，
// 只依賴發送、探測與關閉三個能力。
// WebSocket 適配器與測試替身都實現此介面。
type Transport interface {
	// Send 發送一幀資料（盡力而為，不保證送達）
	Send(data []byte) error

	// Ping 發送一次活性探測
	Ping() error

	// Close 關閉底層通道
	Close() error
}

// Conn 一條客戶端連接
//
// 攜帶三項狀態：
//   - ID：接受連接時分配，進程生命週期內全域唯一
//   - room：當前所在房間名稱（空字串 = 未加入），由 Registry 的鎖保護
//   - alive：活性標誌，探測前置為 false，收到回應時重置為 true
type Conn struct {
	ID        string
	transport Transport

	// 當前房間名稱。只允許 Registry 在其臨界區內讀寫。
	room string

	alive  atomic.Bool
	closed atomic.Bool

	// 斷線清理路徑只能執行一次：
	// 正常關閉與心跳超時可能同時觸發
	disconnectOnce sync.Once
}

// NewConn 包裝一條傳輸通道為連接
func NewConn(transport Transport) *Conn {
	c := &Conn{
		ID:        uuid.NewString(),
		transport: transport,
	}
	c.alive.Store(true)
	return c
}

// Send 向客戶端發送一幀資料
func (c *Conn) Send(data []byte) error {
	return c.transport.Send(data)
}

// Ping 向客戶端發送活性探測
func (c *Conn) Ping() error {
	return c.transport.Ping()
}

// Close 關閉連接
func (c *Conn) Close() {
	c.closed.Store(true)
	_ = c.transport.Close()
}

// Closed 連接是否已關閉
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// TouchAlive 標記連接存活（收到探測回應時呼叫）
func (c *Conn) TouchAlive() {
	c.alive.Store(true)
}

// BeginProbe 開始一輪探測
//
// 將活性標誌置為 false，返回上一輪的值：
// 返回 false 表示上一輪探測未獲回應，連接應判定死亡。
func (c *Conn) BeginProbe() (wasAlive bool) {
	return c.alive.Swap(false)
}

// runDisconnect 執行一次性的斷線清理
func (c *Conn) runDisconnect(fn func()) {
	c.disconnectOnce.Do(fn)
}
