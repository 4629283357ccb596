package internal

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// nopTransport 白盒測試用的空傳輸
type nopTransport struct{}

func (nopTransport) Send([]byte) error { return nil }
func (nopTransport) Ping() error       { return nil }
func (nopTransport) Close() error      { return nil }

// TestRegistry_StaleMembership 測試過時成員資格的防護
//
// 成員資格指向的房間可能已被刪除（例如斷線清理與請求處理競爭）。
// 此時事件操作等同於「尚未加入房間」，clear-buffer 則是 no-op。
func TestRegistry_StaleMembership(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	guard := NewPasswordGuardWithCost(bcrypt.MinCost)
	reg := NewRegistry(guard, 8, logger)

	conn := NewConn(nopTransport{})
	conn.room = "幽靈房間" // 指向不存在的房間

	t.Run("clear-buffer is a no-op", func(t *testing.T) {
		reg.ClearBuffer(conn) // 不得 panic
	})

	t.Run("cache-event reports NoRoomJoined", func(t *testing.T) {
		_, err := reg.CacheEvent(conn, json.RawMessage(`{}`))
		require.ErrorIs(t, err, ErrNoRoomJoined)
	})

	t.Run("broadcast targets report NoRoomJoined", func(t *testing.T) {
		_, err := reg.BroadcastTargets(conn)
		require.ErrorIs(t, err, ErrNoRoomJoined)
	})

	t.Run("leave clears the stale membership", func(t *testing.T) {
		result, err := reg.Leave(conn)
		require.NoError(t, err)
		assert.True(t, result.RoomDeleted)
		assert.Equal(t, "幽靈房間", result.RoomName)
		assert.Empty(t, conn.room)
	})
}
