package workflow

import (
	"errors"

	"monban/internal/device"
)

// Phase はワークフローの状態を表す
type Phase string

const (
	PhaseIdle            Phase = "idle"             // 初期状態
	PhaseDeviceSelect    Phase = "device_select"    // デバイス選択中
	PhaseLivePreview     Phase = "live_preview"     // ライブプレビュー表示中
	PhaseCaptured        Phase = "captured"         // フレームキャプチャ済み
	PhaseServerVerifying Phase = "server_verifying" // バックエンド抽出中
	PhaseManualOverride  Phase = "manual_override"  // 手動入力の確認待ち
	PhaseConfirming      Phase = "confirming"       // フィールド編集・確認中
	PhaseCommitting      Phase = "committing"       // コミット中
	PhaseResult          Phase = "result"           // 終端状態
)

// Mode はワークフローの種別を表す
type Mode string

const (
	ModeRegister     Mode = "register"     // 登録
	ModeAuthenticate Mode = "authenticate" // 認証
)

// Kind はワークフローの対象ドメインを表す
type Kind string

const (
	KindIdentity Kind = "identity" // 身分証・顔
	KindVehicle  Kind = "vehicle"  // 車両ナンバープレート
)

// 操作拒否エラー
var (
	// ErrBusy は別の遷移の非同期ステップが未完了
	ErrBusy = errors.New("別の操作が進行中です")

	// ErrInvalidPhase は現在の状態で許可されない操作
	ErrInvalidPhase = errors.New("現在の状態では実行できない操作です")

	// ErrCommitInFlight はコミットが既に進行中
	ErrCommitInFlight = errors.New("コミットが既に進行中です")

	// ErrMissingFields は必須フィールドが未入力
	ErrMissingFields = errors.New("必須フィールドが入力されていません")
)

// Fields はバックエンドの抽出結果から初期化され、コミット前に
// ユーザーが常に編集できるキー・バリューのレコード
type Fields map[string]string

// Clone はFieldsの独立したコピーを返す
func (f Fields) Clone() Fields {
	clone := make(Fields, len(f))
	for k, v := range f {
		clone[k] = v
	}
	return clone
}

// Extraction は抽出ステップの結果を表す
type Extraction struct {
	// Advance がtrueなら確認フェーズへ進む（フィールドは空でもよい）
	Advance bool

	// 抽出されたフィールド
	Fields Fields

	// コミット時に使う画像（base64、プレフィックスなし）
	Images map[string]string

	// バックエンドが手動入力を明示的に許可した
	OverrideEligible bool

	// 手動入力画面に表示する理由
	Reason string

	// Advance でも OverrideEligible でもない場合に表示するエラー
	Err error
}

// Outcome はコミットステップの結果を表す
type Outcome struct {
	// Committed はコミットの往復が完結したことを示す
	// falseの場合、ワークフローは確認フェーズに留まり再試行できる
	Committed bool

	// Success はコミットの成否
	Success bool

	// ユーザーに表示するメッセージ
	Message string

	// 結果画面に表示する追加情報
	Payload map[string]string
}

// State はワークフローの観測可能なスナップショット
type State struct {
	ID             string              `json:"id"`
	Kind           Kind                `json:"kind"`
	Mode           Mode                `json:"mode"`
	Phase          Phase               `json:"phase"`
	Devices        []device.Descriptor `json:"devices,omitempty"`
	DeviceID       string              `json:"device_id,omitempty"`
	HasFrame       bool                `json:"has_frame"`
	Fields         Fields              `json:"fields,omitempty"`
	OverrideReason string              `json:"override_reason,omitempty"`
	LastError      string              `json:"last_error,omitempty"`
	Outcome        *Outcome            `json:"outcome,omitempty"`
}
