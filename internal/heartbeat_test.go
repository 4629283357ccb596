package internal_test

import (
	"testing"
	"time"

	"github.com/koopa0/lobby-server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// newMonitorStack 組裝心跳測試用的完整棧：
// 判定死亡後走與正常斷線相同的清理路徑
func newMonitorStack(interval time.Duration) (*internal.HeartbeatMonitor, *internal.Router, *internal.Registry) {
	logger := testLogger()
	guard := internal.NewPasswordGuardWithCost(bcrypt.MinCost)
	registry := internal.NewRegistry(guard, 8, logger)
	broadcaster := internal.NewBroadcaster(logger)
	router := internal.NewRouter(registry, broadcaster, logger)
	monitor := internal.NewHeartbeatMonitor(interval, router.HandleDisconnect, logger)
	return monitor, router, registry
}

// TestHeartbeatMonitor_UnansweredProbeReapsConn 測試未回應探測的連接被回收
//
// 兩個週期窗口：第一輪探測置 false 並發送 ping；
// 第二輪發現仍為 false 即判定死亡，效果等同顯式 leave-room。
func TestHeartbeatMonitor_UnansweredProbeReapsConn(t *testing.T) {
	monitor, _, registry := newMonitorStack(time.Hour) // 手動驅動，不靠計時器

	conn, transport := newTestConn()
	mustCreate(t, registry, conn, "大廳一", 4, "")

	monitor.Track(conn)

	// 第一輪：發送探測
	monitor.Probe()
	assert.Equal(t, 1, transport.pingCount())
	assert.False(t, transport.isClosed())

	// 第二輪：探測未獲回應，強制斷線
	monitor.Probe()
	assert.True(t, transport.isClosed())
	assert.Equal(t, 0, monitor.TrackedCount())

	// 唯一成員斷線：房間被刪除
	assert.Empty(t, registry.List())
	_, inRoom := registry.RoomOf(conn)
	assert.False(t, inRoom)
}

// TestHeartbeatMonitor_ResponsiveConnSurvives 測試有回應的連接不受影響
func TestHeartbeatMonitor_ResponsiveConnSurvives(t *testing.T) {
	monitor, _, registry := newMonitorStack(time.Hour)

	conn, transport := newTestConn()
	mustCreate(t, registry, conn, "大廳一", 4, "")

	monitor.Track(conn)

	for i := 0; i < 5; i++ {
		monitor.Probe()
		conn.TouchAlive() // 模擬探測回應到達
	}

	assert.Equal(t, 5, transport.pingCount())
	assert.False(t, transport.isClosed())
	assert.Equal(t, 1, monitor.TrackedCount())
	require.Len(t, registry.List(), 1)
}

// TestHeartbeatMonitor_ReapAnnouncesLeave 測試回收路徑向剩餘成員廣播離開
func TestHeartbeatMonitor_ReapAnnouncesLeave(t *testing.T) {
	monitor, router, registry := newMonitorStack(time.Hour)

	connA, _ := newTestConn()
	connB, transportB := newTestConn()

	send(router, connA, "create-room", map[string]any{"name": "大廳一"})
	send(router, connB, "join-room", map[string]any{"name": "大廳一"})

	monitor.Track(connA)
	monitor.Probe()
	monitor.Probe()

	broadcasts := framesOfType(t, transportB, "leave-broadcast")
	require.Len(t, broadcasts, 1)

	infos := registry.List()
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].MemberCount)
}

// TestHeartbeatMonitor_ClosedConnUntracked 測試已關閉的連接直接移出監控
func TestHeartbeatMonitor_ClosedConnUntracked(t *testing.T) {
	monitor, _, _ := newMonitorStack(time.Hour)

	conn, transport := newTestConn()
	monitor.Track(conn)
	conn.Close()

	monitor.Probe()

	assert.Equal(t, 0, monitor.TrackedCount())
	assert.Equal(t, 0, transport.pingCount())
}

// TestHeartbeatMonitor_TickerDriven 測試計時器驅動的探測循環
func TestHeartbeatMonitor_TickerDriven(t *testing.T) {
	monitor, _, registry := newMonitorStack(10 * time.Millisecond)

	conn, transport := newTestConn()
	mustCreate(t, registry, conn, "大廳一", 4, "")

	monitor.Track(conn)
	monitor.Start()
	defer monitor.Stop()

	// 不回應探測：兩個週期內被回收
	require.Eventually(t, func() bool {
		return transport.isClosed()
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, registry.List())
}
