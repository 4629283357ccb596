package internal

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordGuard 房間密碼守衛
//
// 對外部雜湊能力的薄封裝：房間只保存摘要，不保存明文。
// 使用 bcrypt（自帶鹽值，摘要之間不可比對重放）。
type PasswordGuard struct {
	cost int
}

// NewPasswordGuard 創建密碼守衛（使用 bcrypt 預設成本）
func NewPasswordGuard() *PasswordGuard {
	return &PasswordGuard{cost: bcrypt.DefaultCost}
}

// NewPasswordGuardWithCost 以指定成本創建密碼守衛
//
// 測試中可以用 bcrypt.MinCost 加速。
func NewPasswordGuardWithCost(cost int) *PasswordGuard {
	return &PasswordGuard{cost: cost}
}

// Digest 計算密碼摘要
func (g *PasswordGuard) Digest(secret string) ([]byte, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), g.cost)
	if err != nil {
		return nil, fmt.Errorf("計算密碼摘要失敗: %w", err)
	}
	return digest, nil
}

// Verify 驗證密碼是否與摘要匹配
func (g *PasswordGuard) Verify(secret string, digest []byte) bool {
	return bcrypt.CompareHashAndPassword(digest, []byte(secret)) == nil
}
