package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"monban/internal/config"
	"monban/internal/device"
	"monban/internal/notify"
	"monban/internal/recog"
	"monban/internal/workflow"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// testFixture はテスト用に組み立てたサーバー一式
type testFixture struct {
	server    *Server
	opener    *device.MockOpener
	discovery *device.MockDiscovery
	backend   *httptest.Server
	mux       *http.ServeMux
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	mux := http.NewServeMux()
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)

	cfg := &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Backend:  config.BackendConfig{BaseURL: backend.URL, Timeout: 2 * time.Second},
		Device:   config.DeviceConfig{SwitchSettle: 0, CaptureQuality: 0.95},
		LiveFeed: config.LiveFeedConfig{StartSettle: 0},
		Notify:   config.NotifyConfig{Interval: time.Hour, TargetView: "/human-detection"},
	}

	discovery := device.NewMockDiscovery([]device.Descriptor{
		{ID: "/dev/video0", Label: "Integrated Camera", BuiltIn: true},
		{ID: "/dev/video2", Label: "USB Camera"},
	})
	opener := device.NewMockOpener()
	devices := device.NewManager(discovery, opener, 0, 0.95)

	client := recog.NewClient(backend.URL, cfg.Backend.Timeout)

	return &testFixture{
		server:    NewWithComponents(cfg, client, devices),
		opener:    opener,
		discovery: discovery,
		backend:   backend,
		mux:       mux,
	}
}

// respondJSON はバックエンドのモック応答を登録する
func (f *testFixture) respondJSON(path string, payload any) {
	f.mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	})
}

// do はテスト用リクエストを実行する
func (f *testFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(recorder, req)
	return recorder
}

// decodeState はレスポンスからワークフロー状態を取り出す
func decodeState(t *testing.T, recorder *httptest.ResponseRecorder) workflow.State {
	t.Helper()

	var state workflow.State
	if err := json.Unmarshal(recorder.Body.Bytes(), &state); err != nil {
		t.Fatalf("状態のデコードに失敗: %v (body: %s)", err, recorder.Body.String())
	}
	return state
}

// waitForPhase は非同期遷移の完了をポーリングで待つ
func (f *testFixture) waitForPhase(t *testing.T, id string, want workflow.Phase) workflow.State {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		recorder := f.do(http.MethodGet, "/api/workflows/"+id, nil)
		if recorder.Code == http.StatusOK {
			state := decodeState(t, recorder)
			if state.Phase == want {
				return state
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("フェーズ %s への遷移がタイムアウト", want)
	return workflow.State{}
}

func TestServerHealth(t *testing.T) {
	f := newTestFixture(t)

	recorder := f.do(http.MethodGet, "/health", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	var response HealthResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if response.Status != Healthy {
		t.Errorf("Status = %s, want %s", response.Status, Healthy)
	}
}

func TestServerStatus(t *testing.T) {
	f := newTestFixture(t)

	recorder := f.do(http.MethodGet, "/api/status", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	var response StatusResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if response.Status != Running {
		t.Errorf("Status = %s, want %s", response.Status, Running)
	}
	if response.ActiveWorkflows != 0 {
		t.Errorf("ActiveWorkflows = %d, want 0", response.ActiveWorkflows)
	}
}

func TestServerDevices(t *testing.T) {
	f := newTestFixture(t)

	recorder := f.do(http.MethodGet, "/api/devices", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	var response DevicesResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(response.Devices) != 2 {
		t.Errorf("デバイス数 = %d, want 2", len(response.Devices))
	}
	if response.Default == nil || response.Default.ID != "/dev/video0" {
		t.Errorf("Default = %v, want /dev/video0", response.Default)
	}
}

func TestServerDevicesPermissionDenied(t *testing.T) {
	f := newTestFixture(t)
	f.discovery.SetDenyPermission(true)

	recorder := f.do(http.MethodGet, "/api/devices", nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", recorder.Code)
	}

	var response ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if response.Error != "permission_denied" {
		t.Errorf("Error = %s, want permission_denied", response.Error)
	}
}

func TestServerWorkflowLifecycle(t *testing.T) {
	f := newTestFixture(t)
	f.respondJSON("/extract-id", map[string]any{"success": true, "name": "山田太郎", "identifier": "1234"})
	f.respondJSON("/register-face", map[string]any{"success": true, "userName": "山田太郎", "userImages": 1})

	// ワークフローを開始するとライブプレビューまで進む
	recorder := f.do(http.MethodPost, "/api/workflows",
		OpenWorkflowRequest{Kind: "identity", Mode: "register"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", recorder.Code, recorder.Body.String())
	}

	state := decodeState(t, recorder)
	if state.Phase != workflow.PhaseLivePreview {
		t.Fatalf("Phase = %s, want %s", state.Phase, workflow.PhaseLivePreview)
	}
	id := state.ID

	// キャプチャ
	recorder = f.do(http.MethodPost, fmt.Sprintf("/api/workflows/%s/capture", id), nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("capture status = %d (body: %s)", recorder.Code, recorder.Body.String())
	}

	// キャプチャ済みフレームはdata-URI形式で取得できる
	recorder = f.do(http.MethodGet, fmt.Sprintf("/api/workflows/%s/frame", id), nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("frame status = %d", recorder.Code)
	}
	var frame FrameResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &frame); err != nil {
		t.Fatalf("フレームのデコードに失敗: %v", err)
	}
	if !strings.HasPrefix(frame.Image, "data:image/jpeg;base64,") {
		t.Errorf("Image にdata-URIプレフィックスがない: %.40s", frame.Image)
	}

	// 送信は202で受理され、確認フェーズへ解決する
	recorder = f.do(http.MethodPost, fmt.Sprintf("/api/workflows/%s/submit", id), nil)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202", recorder.Code)
	}
	state = f.waitForPhase(t, id, workflow.PhaseConfirming)
	if state.Fields["name"] != "山田太郎" {
		t.Errorf("Fields[name] = %s, want 山田太郎", state.Fields["name"])
	}

	// フィールド編集
	recorder = f.do(http.MethodPost, fmt.Sprintf("/api/workflows/%s/fields", id),
		SetFieldRequest{Key: "name", Value: "山田次郎"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("fields status = %d (body: %s)", recorder.Code, recorder.Body.String())
	}

	// コミット確定
	recorder = f.do(http.MethodPost, fmt.Sprintf("/api/workflows/%s/confirm", id), nil)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("confirm status = %d, want 202 (body: %s)", recorder.Code, recorder.Body.String())
	}
	state = f.waitForPhase(t, id, workflow.PhaseResult)
	if state.Outcome == nil || !state.Outcome.Success {
		t.Errorf("Outcome = %+v", state.Outcome)
	}

	// 破棄するとハードウェアが解放され、ワークフローは消える
	recorder = f.do(http.MethodPost, fmt.Sprintf("/api/workflows/%s/cancel", id), nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("cancel status = %d, want 204", recorder.Code)
	}
	if f.opener.LiveHandles() != 0 {
		t.Errorf("LiveHandles = %d, want 0", f.opener.LiveHandles())
	}

	recorder = f.do(http.MethodGet, "/api/workflows/"+id, nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("破棄後の取得 status = %d, want 404", recorder.Code)
	}
}

func TestServerWorkflowMissingFields(t *testing.T) {
	f := newTestFixture(t)
	// 抽出は失敗するが、身分証フローは空フィールドで確認へ進む
	f.respondJSON("/extract-id", map[string]any{"success": false})

	recorder := f.do(http.MethodPost, "/api/workflows",
		OpenWorkflowRequest{Kind: "identity", Mode: "register"})
	id := decodeState(t, recorder).ID

	f.do(http.MethodPost, fmt.Sprintf("/api/workflows/%s/capture", id), nil)
	f.do(http.MethodPost, fmt.Sprintf("/api/workflows/%s/submit", id), nil)
	f.waitForPhase(t, id, workflow.PhaseConfirming)

	// 必須フィールドが空のままのコミットは422
	recorder = f.do(http.MethodPost, fmt.Sprintf("/api/workflows/%s/confirm", id), nil)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("confirm status = %d, want 422", recorder.Code)
	}

	var response ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if response.Error != "missing_fields" {
		t.Errorf("Error = %s, want missing_fields", response.Error)
	}
}

func TestServerWorkflowSwitchDevice(t *testing.T) {
	f := newTestFixture(t)

	recorder := f.do(http.MethodPost, "/api/workflows",
		OpenWorkflowRequest{Kind: "identity", Mode: "authenticate"})
	id := decodeState(t, recorder).ID

	recorder = f.do(http.MethodPost, fmt.Sprintf("/api/workflows/%s/device", id),
		SwitchDeviceRequest{DeviceID: "/dev/video2"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("device status = %d (body: %s)", recorder.Code, recorder.Body.String())
	}

	state := decodeState(t, recorder)
	if state.DeviceID != "/dev/video2" {
		t.Errorf("DeviceID = %s, want /dev/video2", state.DeviceID)
	}
	if f.opener.LiveHandles() != 1 {
		t.Errorf("LiveHandles = %d, want 1", f.opener.LiveHandles())
	}
}

func TestServerWorkflowInvalidRequest(t *testing.T) {
	f := newTestFixture(t)

	// 不正なkindは400
	recorder := f.do(http.MethodPost, "/api/workflows",
		map[string]string{"kind": "unknown", "mode": "register"})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", recorder.Code)
	}

	// 存在しないワークフローは404
	recorder = f.do(http.MethodGet, "/api/workflows/no-such-id", nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", recorder.Code)
	}
}

func TestServerWorkflowInvalidPhaseConflict(t *testing.T) {
	f := newTestFixture(t)

	recorder := f.do(http.MethodPost, "/api/workflows",
		OpenWorkflowRequest{Kind: "identity", Mode: "register"})
	id := decodeState(t, recorder).ID

	// プレビュー中の確定は409
	recorder = f.do(http.MethodPost, fmt.Sprintf("/api/workflows/%s/confirm", id), nil)
	if recorder.Code != http.StatusConflict {
		t.Errorf("confirm status = %d, want 409", recorder.Code)
	}
}

func TestServerLiveFeedToggle(t *testing.T) {
	f := newTestFixture(t)
	f.respondJSON("/start_video", map[string]any{"success": true})
	f.respondJSON("/stop_video", map[string]any{"success": true})

	// 開始
	recorder := f.do(http.MethodPost, "/api/livefeed/toggle", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("toggle status = %d (body: %s)", recorder.Code, recorder.Body.String())
	}

	var feed LiveFeedResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &feed); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if !feed.Playing {
		t.Error("Playing = false, want true")
	}
	if feed.StreamURL == "" {
		t.Error("StreamURL が空")
	}

	// 停止
	recorder = f.do(http.MethodPost, "/api/livefeed/toggle", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", recorder.Code)
	}
	feed = LiveFeedResponse{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &feed); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if feed.Playing {
		t.Error("Playing = true, want false")
	}
	if feed.StreamURL != "" {
		t.Error("停止後も StreamURL が残っている")
	}
}

func TestServerLiveFeedStreamRequiresPlaying(t *testing.T) {
	f := newTestFixture(t)

	recorder := f.do(http.MethodGet, "/api/livefeed/stream", nil)
	if recorder.Code != http.StatusConflict {
		t.Errorf("stream status = %d, want 409", recorder.Code)
	}
}

func TestServerAlertsDrain(t *testing.T) {
	f := newTestFixture(t)

	f.server.pushAlert(notify.Alert{EventID: "a.jpg", TargetView: "/human-detection", Message: "新しい人物検知イベントがあります"})

	// 1回目の取得でアラートが届く
	recorder := f.do(http.MethodGet, "/api/alerts", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("alerts status = %d", recorder.Code)
	}

	var response AlertsResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(response.Alerts) != 1 {
		t.Fatalf("アラート数 = %d, want 1", len(response.Alerts))
	}

	// 取得済みのアラートはクリアされる
	recorder = f.do(http.MethodGet, "/api/alerts", nil)
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(response.Alerts) != 0 {
		t.Errorf("アラート数 = %d, want 0", len(response.Alerts))
	}
}

func TestServerSetView(t *testing.T) {
	f := newTestFixture(t)

	recorder := f.do(http.MethodPost, "/api/view", SetViewRequest{View: "/human-detection"})
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("view status = %d, want 204", recorder.Code)
	}

	if got := f.server.CurrentView(); got != "/human-detection" {
		t.Errorf("CurrentView() = %s, want /human-detection", got)
	}
}

func TestServerAttendanceSearchAndPaging(t *testing.T) {
	f := newTestFixture(t)
	f.mux.HandleFunc("/todayattendance", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"attendance":[["山田太郎","1001","09:00"],["佐藤花子","1002","09:15"],["鈴木一郎","2001","10:00"]]}`))
	})

	// 検索
	recorder := f.do(http.MethodGet, "/api/attendance?query=100", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("attendance status = %d (body: %s)", recorder.Code, recorder.Body.String())
	}

	var response PagedRecordsResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(response.Records) != 2 {
		t.Errorf("件数 = %d, want 2", len(response.Records))
	}

	// ページング
	recorder = f.do(http.MethodGet, "/api/attendance?per_page=2&page=2", nil)
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if response.Page != 2 || response.TotalPages != 2 {
		t.Errorf("Page = %d, TotalPages = %d, want 2/2", response.Page, response.TotalPages)
	}
	if len(response.Records) != 1 {
		t.Errorf("件数 = %d, want 1", len(response.Records))
	}
}

func TestServerAttendanceInlineEdit(t *testing.T) {
	f := newTestFixture(t)
	f.mux.HandleFunc("/todayattendance", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"attendance":[["山田太郎","1001","09:00"]]}`))
	})

	// 一覧の取得で編集対象のスナップショットができる
	recorder := f.do(http.MethodGet, "/api/attendance", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("attendance status = %d (body: %s)", recorder.Code, recorder.Body.String())
	}

	// 編集開始（インデックス0も受理される）
	index := 0
	recorder = f.do(http.MethodPost, "/api/attendance/edit", StageEditRequest{Index: &index})
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("edit status = %d (body: %s)", recorder.Code, recorder.Body.String())
	}

	recorder = f.do(http.MethodPost, "/api/attendance/edit/field",
		SetFieldRequest{Key: "name", Value: "山田次郎"})
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("field status = %d (body: %s)", recorder.Code, recorder.Body.String())
	}

	// 編集中の再取得はバックエンドから上書きせず、ドラフトも見せない
	recorder = f.do(http.MethodGet, "/api/attendance", nil)
	var response PagedRecordsResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if response.Records[0]["name"] != "山田太郎" {
		t.Errorf("反映前の name = %s, want 山田太郎", response.Records[0]["name"])
	}

	// 反映後は一覧に現れる
	recorder = f.do(http.MethodPost, "/api/attendance/edit/apply", nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("apply status = %d", recorder.Code)
	}

	recorder = f.do(http.MethodGet, "/api/attendance?refresh=0&query=次郎", nil)
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(response.Records) != 1 || response.Records[0]["name"] != "山田次郎" {
		t.Errorf("records = %v, want 山田次郎 1件", response.Records)
	}

	// 編集対象がない状態の反映は409
	recorder = f.do(http.MethodPost, "/api/attendance/edit/apply", nil)
	if recorder.Code != http.StatusConflict {
		t.Errorf("apply status = %d, want 409", recorder.Code)
	}

	// 範囲外のインデックスは400
	index = 9
	recorder = f.do(http.MethodPost, "/api/attendance/edit", StageEditRequest{Index: &index})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("edit status = %d, want 400", recorder.Code)
	}

	// 破棄はドラフトを捨てる
	index = 0
	f.do(http.MethodPost, "/api/attendance/edit", StageEditRequest{Index: &index})
	f.do(http.MethodPost, "/api/attendance/edit/field", SetFieldRequest{Key: "name", Value: "変更"})
	recorder = f.do(http.MethodPost, "/api/attendance/edit/cancel", nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("cancel status = %d", recorder.Code)
	}

	recorder = f.do(http.MethodGet, "/api/attendance?refresh=0", nil)
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if response.Records[0]["name"] != "山田次郎" {
		t.Errorf("破棄後の name = %s, want 山田次郎", response.Records[0]["name"])
	}
}

func TestServerDetections(t *testing.T) {
	f := newTestFixture(t)
	f.respondJSON("/detection_images", []map[string]any{
		{"id": 7, "filename": "det.jpg", "url": "/images/det.jpg", "timestamp": "2026-08-28 09:00", "read": false},
	})
	f.respondJSON("/mark_read/7", map[string]any{"success": true})

	recorder := f.do(http.MethodGet, "/api/detections", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("detections status = %d", recorder.Code)
	}

	var response PagedRecordsResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(response.Records) != 1 {
		t.Fatalf("件数 = %d, want 1", len(response.Records))
	}
	if response.Records[0]["status"] != "unread" {
		t.Errorf("status = %s, want unread", response.Records[0]["status"])
	}

	// 既読化
	recorder = f.do(http.MethodPost, "/api/detections/7/read", nil)
	if recorder.Code != http.StatusNoContent {
		t.Errorf("mark read status = %d, want 204", recorder.Code)
	}

	// 不正なIDは400
	recorder = f.do(http.MethodPost, "/api/detections/abc/read", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("不正ID status = %d, want 400", recorder.Code)
	}
}

func TestServerShutdownReleasesEverything(t *testing.T) {
	f := newTestFixture(t)
	f.respondJSON("/start_video", map[string]any{"success": true})
	f.respondJSON("/stop_video", map[string]any{"success": true})

	// ワークフローとライブフィードを動かした状態でシャットダウンする
	recorder := f.do(http.MethodPost, "/api/workflows",
		OpenWorkflowRequest{Kind: "identity", Mode: "register"})
	if decodeState(t, recorder).Phase != workflow.PhaseLivePreview {
		t.Fatal("ワークフローの準備に失敗")
	}
	f.do(http.MethodPost, "/api/livefeed/toggle", nil)

	if err := f.server.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if f.opener.LiveHandles() != 0 {
		t.Errorf("LiveHandles = %d, want 0", f.opener.LiveHandles())
	}
	if f.server.workflowCount() != 0 {
		t.Errorf("workflowCount = %d, want 0", f.server.workflowCount())
	}
	if f.server.feed.Playing() {
		t.Error("シャットダウン後も Playing = true")
	}
}

func TestServerIndexServesEmbeddedPage(t *testing.T) {
	f := newTestFixture(t)

	recorder := f.do(http.MethodGet, "/", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("index status = %d, want 200", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "Monban") {
		t.Error("index.htmlの内容が配信されていない")
	}
}
