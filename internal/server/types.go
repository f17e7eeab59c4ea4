package server

import (
	"time"

	"monban/internal/device"
	"monban/internal/notify"
)

// HealthStatus はヘルスチェックの状態
type HealthStatus string

// HealthStatus の定数定義
const (
	Healthy HealthStatus = "healthy"
)

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    HealthStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

// SystemStatus はシステムの動作状態
type SystemStatus string

// SystemStatus の定数定義
const (
	Running SystemStatus = "running"
)

// ServerInfo はサーバーの情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態取得のレスポンス
type StatusResponse struct {
	Status          SystemStatus `json:"status"`
	Server          ServerInfo   `json:"server"`
	ActiveWorkflows int          `json:"active_workflows"`
	LiveFeedPlaying bool         `json:"live_feed_playing"`
	Timestamp       time.Time    `json:"timestamp"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DevicesResponse はデバイス一覧のレスポンス
type DevicesResponse struct {
	Devices []device.Descriptor `json:"devices"`
	Default *device.Descriptor  `json:"default,omitempty"`
}

// OpenWorkflowRequest はワークフロー開始のリクエスト
type OpenWorkflowRequest struct {
	Kind   string `json:"kind" binding:"required,oneof=identity vehicle"`
	Mode   string `json:"mode" binding:"required,oneof=register authenticate"`
	IDType string `json:"id_type"`
}

// SwitchDeviceRequest はデバイス切り替えのリクエスト
type SwitchDeviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// SetFieldRequest はフィールド編集のリクエスト
type SetFieldRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

// StageEditRequest はレコード編集開始のリクエスト
// インデックス0を区別するためポインタで受ける
type StageEditRequest struct {
	Index *int `json:"index" binding:"required"`
}

// SetViewRequest は現在ビュー報告のリクエスト
type SetViewRequest struct {
	View string `json:"view" binding:"required"`
}

// FrameResponse はキャプチャ済みフレームのレスポンス
// ローカル描画用にdata-URI形式で返す
type FrameResponse struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

// LiveFeedResponse はライブフィード状態のレスポンス
type LiveFeedResponse struct {
	Playing   bool   `json:"playing"`
	StreamURL string `json:"stream_url,omitempty"`
}

// AlertsResponse は未読アラートのレスポンス
type AlertsResponse struct {
	Alerts []notify.Alert `json:"alerts"`
}

// PagedRecordsResponse はページング済みレコードのレスポンス
type PagedRecordsResponse struct {
	Records    []map[string]string `json:"records"`
	Page       int                 `json:"page"`
	TotalPages int                 `json:"total_pages"`
}
