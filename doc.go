// Package lobbyserver 提供了一個即時房間（Lobby）協調服務器。
//
// 實現了一個支援多房間、多連接的即時協調層，包含以下核心功能：
//
// 房間生命週期管理
//
// 提供完整的房間生命週期管理：
//   - 房間創建（容量限制、可選密碼）
//   - 連接加入與離開（全域唯一成員資格）
//   - 最後一位成員離開時自動刪除房間
//   - 房間列表查詢
//
// 事件廣播與回放
//
// 實現了房間級別的事件分發機制：
//   - 快取事件：寫入房間事件緩衝區並廣播給所有成員
//   - 廣播事件：發送給除發送者以外的所有成員
//   - 遲到加入者透過緩衝區回放追上當前狀態
//   - 緩衝區由應用邏輯顯式清除（無淘汰策略）
//
// # WebSocket 通訊
//
// 實現了即時雙向通訊機制：
//   - 連接建立時立即下發 connected 通知（攜帶連接 ID）
//   - 心跳監控（探測 / 回應，兩個週期窗口判定死連接）
//   - 斷線清理與顯式離開共用同一路徑，保證只執行一次
//   - 緩衝 channel 異步發送（慢客戶端不拖累房間）
//
// 併發安全設計
//
// 採用了粗粒度鎖策略保證正確性：
//   - 註冊表全域互斥鎖保護房間映射與成員資格
//   - 檢查與變更（容量、密碼、重複加入）在同一臨界區內原子完成
//   - 每條連接的入站訊息順序處理
//
// 使用範例
//
// 啟動服務器：
//
//	guard := internal.NewPasswordGuard()
//	registry := internal.NewRegistry(guard, cfg.Room.DefaultCapacity, logger)
//	broadcaster := internal.NewBroadcaster(logger)
//	router := internal.NewRouter(registry, broadcaster, logger)
//	monitor := internal.NewHeartbeatMonitor(cfg.Heartbeat.Interval, router.HandleDisconnect, logger)
//	hub := internal.NewHub(router, monitor, logger)
//
//	http.HandleFunc("/ws", hub.ServeWS)
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// 架構設計
//
// 系統採用分層架構設計：
//   - Hub 層：WebSocket 連接管理與讀寫泵
//   - Router 層：協議解碼與請求分發
//   - Registry 層：房間狀態與不變量維護
//   - Broadcaster 層：房間級別的盡力而為廣播
//
// 每層都有明確的職責邊界，共享狀態只透過 Registry 的加鎖操作變更。
//
// 配置選項
//
// 支援多種運行時配置：
//   - -port：服務監聽端口（預設 8080）
//   - -config：YAML 配置檔路徑（心跳間隔、預設房間容量）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
package lobbyserver
