package internal

import "errors"

// 房間操作錯誤
//
// 所有錯誤都是可恢復的：轉換為回應訊息發給請求者，
// 不會中斷連接，也不影響其他連接。
var (
	ErrRoomExists      = errors.New("房間名稱已存在")
	ErrRoomNotFound    = errors.New("房間不存在")
	ErrRoomFull        = errors.New("房間已滿")
	ErrInvalidPassword = errors.New("密碼錯誤")
	ErrAlreadyInRoom   = errors.New("已在其他房間中")
	ErrNotInRoom       = errors.New("不在任何房間中")
	ErrNoRoomJoined    = errors.New("尚未加入房間")
)

// Reason 回應訊息中的原因代碼
type Reason string

const (
	ReasonOK              Reason = "OK"
	ReasonAlreadyExists   Reason = "AlreadyExists"
	ReasonNotFound        Reason = "NotFound"
	ReasonFull            Reason = "Full"
	ReasonInvalidPassword Reason = "InvalidPassword"
	ReasonAlreadyInRoom   Reason = "AlreadyInRoom"
	ReasonNotInRoom       Reason = "NotInRoom"
	ReasonNoRoomJoined    Reason = "NoRoomJoined"
	ReasonUnknown         Reason = "Unknown"
)

// ReasonOf 將註冊表錯誤映射為線上協議的原因代碼
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonOK
	case errors.Is(err, ErrRoomExists):
		return ReasonAlreadyExists
	case errors.Is(err, ErrRoomNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrRoomFull):
		return ReasonFull
	case errors.Is(err, ErrInvalidPassword):
		return ReasonInvalidPassword
	case errors.Is(err, ErrAlreadyInRoom):
		return ReasonAlreadyInRoom
	case errors.Is(err, ErrNotInRoom):
		return ReasonNotInRoom
	case errors.Is(err, ErrNoRoomJoined):
		return ReasonNoRoomJoined
	default:
		return ReasonUnknown
	}
}
