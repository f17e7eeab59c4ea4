package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"monban/internal/device"
	"monban/internal/notify"
	"monban/internal/recog"
	"monban/internal/records"
	"monban/internal/workflow"

	"github.com/gin-gonic/gin"
)

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/", s.handleIndex)
	s.engine.StaticFS("/static", GetStaticFS())

	api := s.engine.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/devices", s.handleDevices)

		api.POST("/workflows", s.handleOpenWorkflow)
		api.GET("/workflows/:id", s.handleWorkflowState)
		api.GET("/workflows/:id/frame", s.handleWorkflowFrame)
		api.POST("/workflows/:id/device", s.handleSwitchDevice)
		api.POST("/workflows/:id/capture", s.handleCapture)
		api.POST("/workflows/:id/submit", s.handleSubmit)
		api.POST("/workflows/:id/override/accept", s.handleOverrideAccept)
		api.POST("/workflows/:id/override/reject", s.handleOverrideReject)
		api.POST("/workflows/:id/fields", s.handleSetField)
		api.POST("/workflows/:id/confirm", s.handleConfirm)
		api.POST("/workflows/:id/cancel", s.handleCancelWorkflow)

		api.GET("/livefeed", s.handleLiveFeedState)
		api.POST("/livefeed/toggle", s.handleLiveFeedToggle)
		api.GET("/livefeed/stream", s.handleLiveFeedStream)

		api.GET("/alerts", s.handleAlerts)
		api.POST("/view", s.handleSetView)

		api.GET("/attendance", s.handleAttendance)
		api.POST("/attendance/edit", s.handleAttendanceStageEdit)
		api.POST("/attendance/edit/field", s.handleAttendanceDraftField)
		api.POST("/attendance/edit/apply", s.handleAttendanceApplyEdit)
		api.POST("/attendance/edit/cancel", s.handleAttendanceCancelEdit)
		api.GET("/detections", s.handleDetections)
		api.POST("/detections/:id/read", s.handleMarkRead)
		api.DELETE("/detections/:id", s.handleDeleteDetection)
	}
}

// handleHealth はヘルスチェックエンドポイントの実装
func (s *Server) handleHealth(c *gin.Context) {
	response := HealthResponse{
		Status:    Healthy,
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// handleStatus はシステム状態取得エンドポイントの実装
func (s *Server) handleStatus(c *gin.Context) {
	response := StatusResponse{
		Status: Running,
		Server: ServerInfo{
			Host: s.config.Server.Host,
			Port: s.config.Server.Port,
		},
		ActiveWorkflows: s.workflowCount(),
		LiveFeedPlaying: s.feed.Playing(),
		Timestamp:       time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// handleDevices はキャプチャデバイス一覧取得エンドポイントの実装
// 列挙はリクエストごとに新しく行われる
func (s *Server) handleDevices(c *gin.Context) {
	devices, err := s.devices.ListDevices(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	response := DevicesResponse{
		Devices: devices,
		Default: device.SelectDefault(devices),
	}

	c.JSON(http.StatusOK, response)
}

// handleOpenWorkflow はワークフロー開始エンドポイントの実装
func (s *Server) handleOpenWorkflow(c *gin.Context) {
	var req OpenWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	var flow workflow.Flow
	switch workflow.Kind(req.Kind) {
	case workflow.KindVehicle:
		flow = workflow.NewVehicleFlow(s.client)
	default:
		idType := req.IDType
		if idType == "" {
			idType = "aadhar"
		}
		flow = workflow.NewIdentityFlow(s.client, idType)
	}

	machine := workflow.NewMachine(workflow.Mode(req.Mode), flow, s.devices)
	s.putWorkflow(machine)

	// デバイス列挙とデフォルト選択まで進める
	// 失敗はスナップショットのインラインエラーとして表示される
	_ = machine.Open(c.Request.Context())

	c.JSON(http.StatusOK, machine.Snapshot())
}

// handleWorkflowState はワークフロー状態取得エンドポイントの実装
func (s *Server) handleWorkflowState(c *gin.Context) {
	machine, exists := s.getWorkflow(c.Param("id"))
	if !exists {
		s.writeNotFound(c, "指定されたワークフローが見つかりません")
		return
	}

	c.JSON(http.StatusOK, machine.Snapshot())
}

// handleWorkflowFrame はキャプチャ済みフレーム取得エンドポイントの実装
// ローカル描画の境界なのでdata-URIプレフィックスを付与して返す
func (s *Server) handleWorkflowFrame(c *gin.Context) {
	machine, exists := s.getWorkflow(c.Param("id"))
	if !exists {
		s.writeNotFound(c, "指定されたワークフローが見つかりません")
		return
	}

	frame := machine.Frame()
	if frame == nil {
		s.writeNotFound(c, "キャプチャ済みフレームがありません")
		return
	}

	response := FrameResponse{
		Image:    recog.DataURI(base64.StdEncoding.EncodeToString(frame.Data)),
		MimeType: frame.MimeType,
	}

	c.JSON(http.StatusOK, response)
}

// handleSwitchDevice はデバイス切り替えエンドポイントの実装
func (s *Server) handleSwitchDevice(c *gin.Context) {
	machine, exists := s.getWorkflow(c.Param("id"))
	if !exists {
		s.writeNotFound(c, "指定されたワークフローが見つかりません")
		return
	}

	var req SwitchDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	if err := machine.SwitchDevice(c.Request.Context(), req.DeviceID); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, machine.Snapshot())
}

// handleCapture はフレームキャプチャエンドポイントの実装
func (s *Server) handleCapture(c *gin.Context) {
	machine, exists := s.getWorkflow(c.Param("id"))
	if !exists {
		s.writeNotFound(c, "指定されたワークフローが見つかりません")
		return
	}

	if err := machine.Capture(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, machine.Snapshot())
}

// handleSubmit は抽出送信エンドポイントの実装
// 抽出はバックグラウンドで進み、クライアントは状態取得でポーリングする
func (s *Server) handleSubmit(c *gin.Context) {
	machine, exists := s.getWorkflow(c.Param("id"))
	if !exists {
		s.writeNotFound(c, "指定されたワークフローが見つかりません")
		return
	}

	// リクエストのコンテキストはレスポンス送信で破棄されるため、
	// 抽出にはバックグラウンドのコンテキストを使う
	if err := machine.Submit(context.Background()); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, machine.Snapshot())
}

// handleOverrideAccept は手動入力受け入れエンドポイントの実装
func (s *Server) handleOverrideAccept(c *gin.Context) {
	machine, exists := s.getWorkflow(c.Param("id"))
	if !exists {
		s.writeNotFound(c, "指定されたワークフローが見つかりません")
		return
	}

	if err := machine.AcceptOverride(); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, machine.Snapshot())
}

// handleOverrideReject は手動入力拒否エンドポイントの実装
func (s *Server) handleOverrideReject(c *gin.Context) {
	machine, exists := s.getWorkflow(c.Param("id"))
	if !exists {
		s.writeNotFound(c, "指定されたワークフローが見つかりません")
		return
	}

	if err := machine.RejectOverride(); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, machine.Snapshot())
}

// handleSetField はフィールド編集エンドポイントの実装
func (s *Server) handleSetField(c *gin.Context) {
	machine, exists := s.getWorkflow(c.Param("id"))
	if !exists {
		s.writeNotFound(c, "指定されたワークフローが見つかりません")
		return
	}

	var req SetFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	if err := machine.SetField(req.Key, req.Value); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, machine.Snapshot())
}

// handleConfirm はコミット確定エンドポイントの実装
func (s *Server) handleConfirm(c *gin.Context) {
	machine, exists := s.getWorkflow(c.Param("id"))
	if !exists {
		s.writeNotFound(c, "指定されたワークフローが見つかりません")
		return
	}

	if err := machine.Confirm(context.Background()); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, machine.Snapshot())
}

// handleCancelWorkflow はワークフロー破棄エンドポイントの実装
// ハードウェアは同期的に解放される
func (s *Server) handleCancelWorkflow(c *gin.Context) {
	machine, exists := s.getWorkflow(c.Param("id"))
	if !exists {
		s.writeNotFound(c, "指定されたワークフローが見つかりません")
		return
	}

	machine.Cancel()
	s.removeWorkflow(machine.ID())

	c.Status(http.StatusNoContent)
}

// handleLiveFeedState はライブフィード状態取得エンドポイントの実装
func (s *Server) handleLiveFeedState(c *gin.Context) {
	response := LiveFeedResponse{
		Playing: s.feed.Playing(),
	}
	if response.Playing {
		response.StreamURL = "/api/livefeed/stream"
	}

	c.JSON(http.StatusOK, response)
}

// handleLiveFeedToggle はライブフィード切り替えエンドポイントの実装
func (s *Server) handleLiveFeedToggle(c *gin.Context) {
	if err := s.feed.Toggle(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}

	s.handleLiveFeedState(c)
}

// handleLiveFeedStream はライブフィードのプロキシ配信エンドポイントの実装
// バックエンドの連続画像ストリームをそのまま中継する
func (s *Server) handleLiveFeedStream(c *gin.Context) {
	if !s.feed.Playing() {
		s.writeConflict(c, "ライブフィードが再生中ではありません")
		return
	}

	resp, err := s.client.OpenVideoFeed(c.Request.Context(), s.feed.Token())
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// レスポンスヘッダーを設定
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "multipart/x-mixed-replace; boundary=frame"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return
		default:
		}

		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := writer.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			return
		}
	}
}

// handleAlerts は未配送アラート取得エンドポイントの実装
// 取得済みのアラートはクリアされる（破棄可能な通知）
func (s *Server) handleAlerts(c *gin.Context) {
	alerts := s.drainAlerts()
	if alerts == nil {
		alerts = []notify.Alert{}
	}

	c.JSON(http.StatusOK, AlertsResponse{Alerts: alerts})
}

// handleSetView は現在ビュー報告エンドポイントの実装
// 該当ビュー表示中の通知抑制に使われる
func (s *Server) handleSetView(c *gin.Context) {
	var req SetViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	s.alertMu.Lock()
	s.currentView = req.View
	s.alertMu.Unlock()

	c.Status(http.StatusNoContent)
}

// handleAttendance は当日出席一覧エンドポイントの実装
// 一覧の状態はサーバー側に保持され、取得のたびにバックエンドから
// 更新される。refresh=0 は保持中のスナップショットをそのまま使う。
// 編集中は常にスナップショットを保ち、ドラフトを壊さない
func (s *Server) handleAttendance(c *gin.Context) {
	if c.Query("refresh") != "0" && !s.attendance.Editing() {
		result, err := s.client.TodayAttendance(c.Request.Context())
		if err != nil {
			s.writeError(c, err)
			return
		}
		s.attendance.SetRecords(records.FromAttendance(result.Attendance))
	}

	s.writePagedRecords(c, s.attendance)
}

// handleAttendanceStageEdit は出席レコードの編集開始エンドポイントの実装
func (s *Server) handleAttendanceStageEdit(c *gin.Context) {
	var req StageEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	if err := s.attendance.StageEdit(*req.Index); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// handleAttendanceDraftField は編集中ドラフトのフィールド更新エンドポイントの実装
func (s *Server) handleAttendanceDraftField(c *gin.Context) {
	var req SetFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	if err := s.attendance.SetDraftField(req.Key, req.Value); err != nil {
		s.writeConflict(c, err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// handleAttendanceApplyEdit はドラフト反映エンドポイントの実装
func (s *Server) handleAttendanceApplyEdit(c *gin.Context) {
	if err := s.attendance.ApplyEdit(); err != nil {
		s.writeConflict(c, err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// handleAttendanceCancelEdit はドラフト破棄エンドポイントの実装
func (s *Server) handleAttendanceCancelEdit(c *gin.Context) {
	s.attendance.CancelEdit()
	c.Status(http.StatusNoContent)
}

// handleDetections は検知イベント一覧エンドポイントの実装
func (s *Server) handleDetections(c *gin.Context) {
	images, err := s.client.DetectionImages(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	list := records.NewList(10)
	list.SetRecords(records.FromDetections(images))
	s.writePagedRecords(c, list)
}

// handleMarkRead は検知イベント既読化エンドポイントの実装
func (s *Server) handleMarkRead(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		s.writeBadRequest(c, err)
		return
	}

	if err := s.client.MarkRead(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// handleDeleteDetection は検知イベント削除エンドポイントの実装
func (s *Server) handleDeleteDetection(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		s.writeBadRequest(c, err)
		return
	}

	if err := s.client.DeleteDetectionImage(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// writePagedRecords はリクエストの検索・ページング指定を適用して
// レコードを返す
func (s *Server) writePagedRecords(c *gin.Context, list *records.List) {
	if perPage, err := strconv.Atoi(c.Query("per_page")); err == nil && perPage > 0 {
		list.SetPerPage(perPage)
	}

	list.SetQuery(c.Query("query"))
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		list.SetPage(page)
	}

	pageRecords := list.PageRecords()
	out := make([]map[string]string, 0, len(pageRecords))
	for _, r := range pageRecords {
		out = append(out, r)
	}

	c.JSON(http.StatusOK, PagedRecordsResponse{
		Records:    out,
		Page:       list.Page(),
		TotalPages: list.TotalPages(),
	})
}

// エラーレスポンスのヘルパー

// writeError はエラーを分類してレスポンスに変換する
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	code := "backend_error"

	switch {
	case errors.Is(err, device.ErrPermissionDenied):
		status = http.StatusForbidden
		code = "permission_denied"
	case errors.Is(err, device.ErrDeviceUnavailable):
		status = http.StatusServiceUnavailable
		code = "device_unavailable"
	case errors.Is(err, device.ErrNoActiveStream):
		status = http.StatusConflict
		code = "no_active_stream"
	case errors.Is(err, workflow.ErrBusy), errors.Is(err, workflow.ErrCommitInFlight):
		status = http.StatusConflict
		code = "operation_in_progress"
	case errors.Is(err, workflow.ErrInvalidPhase):
		status = http.StatusConflict
		code = "invalid_phase"
	case errors.Is(err, workflow.ErrMissingFields):
		status = http.StatusUnprocessableEntity
		code = "missing_fields"
	}

	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}

// writeBadRequest はリクエスト不正のレスポンスを返す
func (s *Server) writeBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     "bad_request",
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}

// writeNotFound は対象不在のレスポンスを返す
func (s *Server) writeNotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:     "not_found",
		Message:   message,
		Timestamp: time.Now(),
	})
}

// writeConflict は競合状態のレスポンスを返す
func (s *Server) writeConflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, ErrorResponse{
		Error:     "conflict",
		Message:   message,
		Timestamp: time.Now(),
	})
}
