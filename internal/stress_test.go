package internal_test

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koopa0/lobby-server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStress_ConcurrentJoinsRespectCapacity 測試併發加入不超過容量
//
// 容量檢查與成員追加在同一臨界區內完成：
// 不允許兩個加入同時通過檢查而超額入場。
func TestStress_ConcurrentJoinsRespectCapacity(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	const (
		capacity   = 10
		numJoiners = 100
	)

	reg := newTestRegistry(8)

	owner, _ := newTestConn()
	mustCreate(t, reg, owner, "競技場", capacity, "")

	var (
		wg           sync.WaitGroup
		successCount int32
		fullCount    int32
		otherErrors  int32
	)

	for i := 0; i < numJoiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			conn, _ := newTestConn()
			_, err := reg.Join(conn, "競技場", "")
			switch {
			case err == nil:
				atomic.AddInt32(&successCount, 1)
			case err == internal.ErrRoomFull:
				atomic.AddInt32(&fullCount, 1)
			default:
				atomic.AddInt32(&otherErrors, 1)
			}
		}()
	}

	wg.Wait()

	t.Logf("併發加入壓力測試結果:")
	t.Logf("  成功: %d", successCount)
	t.Logf("  滿員拒絕: %d", fullCount)
	t.Logf("  其他錯誤: %d", otherErrors)

	// 創建者佔一個名額，剩下 capacity-1 個
	assert.Equal(t, int32(capacity-1), successCount)
	assert.Equal(t, int32(numJoiners-(capacity-1)), fullCount)
	assert.Equal(t, int32(0), otherErrors)

	infos := reg.List()
	require.Len(t, infos, 1)
	assert.Equal(t, capacity, infos[0].MemberCount)
	assert.LessOrEqual(t, infos[0].MemberCount, infos[0].Capacity)
}

// TestStress_ReplayConsistencyUnderConcurrentCache 測試併發快取下的回放一致性
//
// 寫入端按順序快取事件，加入端併發進場：
// 每個加入者的回放必須是事件序列的精確前綴
// （順序保持、不重複、不遺漏截至加入瞬間的事件）。
func TestStress_ReplayConsistencyUnderConcurrentCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	const (
		numEvents  = 200
		numJoiners = 50
	)

	reg := newTestRegistry(8)

	writer, _ := newTestConn()
	mustCreate(t, reg, writer, "回放室", numJoiners+1, "")

	var wg sync.WaitGroup

	// 寫入端：按順序快取事件
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= numEvents; i++ {
			payload := json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i))
			_, err := reg.CacheEvent(writer, payload)
			assert.NoError(t, err)
		}
	}()

	// 加入端：併發進場並記錄各自的回放快照
	replays := make([][]json.RawMessage, numJoiners)
	for i := 0; i < numJoiners; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)

			conn, _ := newTestConn()
			result, err := reg.Join(conn, "回放室", "")
			if assert.NoError(t, err) {
				replays[idx] = result.Buffered
			}
		}(i)
	}

	wg.Wait()

	// 每個回放都是 1..k 的精確前綴
	for idx, replay := range replays {
		for pos, entry := range replay {
			var event struct {
				Seq int `json:"seq"`
			}
			require.NoError(t, json.Unmarshal(entry, &event))
			require.Equal(t, pos+1, event.Seq,
				"joiner %d: 回放第 %d 條的序號錯誤", idx, pos)
		}
	}
}

// TestStress_ConcurrentChurn 測試併發創建、加入、離開的不變量
func TestStress_ConcurrentChurn(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	const (
		numWorkers    = 50
		numOperations = 20
		numRoomNames  = 10
	)

	reg := newTestRegistry(4)

	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			conn, _ := newTestConn()
			for j := 0; j < numOperations; j++ {
				name := fmt.Sprintf("房間_%d", rand.Intn(numRoomNames))

				switch rand.Intn(3) {
				case 0:
					_, _ = reg.Create(conn, name, 0, "")
				case 1:
					_, _ = reg.Join(conn, name, "")
				case 2:
					_, _ = reg.Leave(conn)
				}
			}

			// 收尾：離開當前房間
			_, _ = reg.Leave(conn)
		}()
	}

	wg.Wait()

	// 不變量：每個存活的房間成員數在 1 與容量之間
	for _, info := range reg.List() {
		assert.GreaterOrEqual(t, info.MemberCount, 1, "房間 %s 不應為空", info.Name)
		assert.LessOrEqual(t, info.MemberCount, info.Capacity, "房間 %s 超過容量", info.Name)
	}

	// 所有工作者都已離開：註冊表不應再有成員
	stats := reg.Stats()
	assert.Equal(t, 0, stats["total_members"])
	assert.Empty(t, reg.List())
}
