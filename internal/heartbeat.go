package internal

import (
	"log/slog"
	"sync"
	"time"
)

// 系統設計問題：
//   客戶端異常斷線（網絡故障、進程崩潰）時，服務器如何察覺？
//
// 設計方案：
//   ✅ 固定間隔探測 - 每個週期向所有連接發送一次活性探測
//   ✅ 兩個週期窗口 - 探測前將 alive 置 false，回應到達時重置；
//      下一輪發現 alive 仍為 false 即判定死亡
//   ✅ 共用斷線路徑 - 判定死亡後走與正常關閉完全相同的清理路徑
//      （離開房間 + 廣播離開通知），且保證只執行一次

// HeartbeatMonitor 心跳監控器
//
// 獨立於訊息處理運行：以固定間隔遍歷所有受監控的連接，
// 發送探測並回收未回應的連接。
type HeartbeatMonitor struct {
	interval   time.Duration
	disconnect func(*Conn) // 判定死亡後的清理路徑（Router.HandleDisconnect）
	logger     *slog.Logger

	mu    sync.Mutex
	conns map[*Conn]struct{}

	startOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewHeartbeatMonitor 創建心跳監控器
//
// 監控循環由 Start 啟動，Stop 停止。
func NewHeartbeatMonitor(interval time.Duration, disconnect func(*Conn), logger *slog.Logger) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		interval:   interval,
		disconnect: disconnect,
		logger:     logger,
		conns:      make(map[*Conn]struct{}),
		stopCh:     make(chan struct{}),
	}
}

// Start 啟動監控循環
func (hm *HeartbeatMonitor) Start() {
	hm.startOnce.Do(func() {
		hm.wg.Add(1)
		go hm.probeLoop()
	})
}

// Track 將連接納入監控
func (hm *HeartbeatMonitor) Track(conn *Conn) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.conns[conn] = struct{}{}
}

// Untrack 將連接移出監控
func (hm *HeartbeatMonitor) Untrack(conn *Conn) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	delete(hm.conns, conn)
}

// probeLoop 監控循環
func (hm *HeartbeatMonitor) probeLoop() {
	defer hm.wg.Done()

	ticker := time.NewTicker(hm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hm.Probe()
		case <-hm.stopCh:
			return
		}
	}
}

// Probe 執行一輪探測（公開方法供測試使用）
//
// 對每條受監控的連接：
//   - 上一輪探測未獲回應 → 強制關閉並走斷線清理路徑
//   - 否則將 alive 置 false 並發送探測，等待下一輪檢驗
func (hm *HeartbeatMonitor) Probe() {
	hm.mu.Lock()
	conns := make([]*Conn, 0, len(hm.conns))
	for conn := range hm.conns {
		conns = append(conns, conn)
	}
	hm.mu.Unlock()

	for _, conn := range conns {
		if conn.Closed() {
			hm.Untrack(conn)
			continue
		}

		if wasAlive := conn.BeginProbe(); !wasAlive {
			hm.logger.Info("心跳逾時，強制斷線", "conn_id", conn.ID)
			hm.Untrack(conn)
			hm.disconnect(conn)
			continue
		}

		if err := conn.Ping(); err != nil {
			hm.logger.Warn("發送探測失敗，視為斷線",
				"conn_id", conn.ID,
				"error", err)
			hm.Untrack(conn)
			hm.disconnect(conn)
		}
	}
}

// TrackedCount 返回當前受監控的連接數
func (hm *HeartbeatMonitor) TrackedCount() int {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return len(hm.conns)
}

// Stop 停止監控器
func (hm *HeartbeatMonitor) Stop() {
	close(hm.stopCh)
	hm.wg.Wait()

	hm.logger.Info("心跳監控器已停止")
}
