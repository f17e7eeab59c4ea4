package recog

import (
	"encoding/json"
	"fmt"
	"strings"
)

const dataURIPrefix = "data:image/jpeg;base64,"

// DataURI はローカル描画用にbase64 JPEGへプレフィックスを付与する
func DataURI(b64 string) string {
	if b64 == "" {
		return ""
	}
	if strings.HasPrefix(b64, dataURIPrefix) {
		return b64
	}
	return dataURIPrefix + b64
}

// StripDataURI はワイヤー送信用にdata-URIプレフィックスを除去する
func StripDataURI(uri string) string {
	return strings.TrimPrefix(uri, dataURIPrefix)
}

// ExtractIDRequest は身分証OCR抽出のリクエスト
type ExtractIDRequest struct {
	IDType  string `json:"idType"`
	IDImage string `json:"idImage"` // base64 JPEG（プレフィックスなし）
}

// ExtractIDResult は身分証OCR抽出のレスポンス
type ExtractIDResult struct {
	Success    bool   `json:"success"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// RegisterFaceRequest は顔登録コミットのリクエスト
type RegisterFaceRequest struct {
	IDType     string `json:"idType"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// RegisterFaceResult は顔登録コミットのレスポンス
type RegisterFaceResult struct {
	Success    bool   `json:"success"`
	UserName   string `json:"userName"`
	UserImages int    `json:"userImages"`
	Message    string `json:"message"`
}

// AuthenticateRequest は顔認証コミットのリクエスト
type AuthenticateRequest struct {
	IDType     string `json:"idType"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// AuthenticateResult は顔認証コミットのレスポンス
type AuthenticateResult struct {
	Success    bool   `json:"success"`
	Status     string `json:"status"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// AttendanceEntry は当日の出席記録1件を表す
// ワイヤー上は [name, id, time] の3要素配列
type AttendanceEntry struct {
	Name string
	ID   string
	Time string
}

// UnmarshalJSON は3要素配列からAttendanceEntryを復元する
func (e *AttendanceEntry) UnmarshalJSON(data []byte) error {
	var tuple []string
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("出席記録の解析に失敗: %w", err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("出席記録の要素数が不正: %d", len(tuple))
	}

	e.Name = tuple[0]
	e.ID = tuple[1]
	e.Time = tuple[2]
	return nil
}

// MarshalJSON はAttendanceEntryを3要素配列に変換する
func (e AttendanceEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{e.Name, e.ID, e.Time})
}

// AttendanceResult は当日出席一覧のレスポンス
type AttendanceResult struct {
	Success    bool              `json:"success"`
	Attendance []AttendanceEntry `json:"attendance"`
}

// PlateResult はナンバープレート抽出のレスポンス
type PlateResult struct {
	Success                 bool   `json:"success"`
	PlateNumber             string `json:"plate_number"`
	FullImage               string `json:"full_image"`  // base64 JPEG
	PlateImage              string `json:"plate_image"` // base64 JPEG
	ManualOverrideAvailable bool   `json:"manual_override_available"`
	Message                 string `json:"message"`
}

// VehicleRegistration は車両登録コミットのリクエスト
type VehicleRegistration struct {
	PlateNumber string `json:"plate_number"`
	Owner       string `json:"owner"`
	VehicleType string `json:"vehicle_type"`
	Color       string `json:"color"`
	Model       string `json:"model"`
	FullImage   string `json:"full_image"`  // base64 JPEG
	PlateImage  string `json:"plate_image"` // base64 JPEG（手動入力時は空）
}

// SimpleResult は成否とメッセージのみのレスポンス
type SimpleResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VehicleRecord は登録済み車両の情報
type VehicleRecord struct {
	PlateNumber string `json:"plate_number"`
	Owner       string `json:"owner"`
	VehicleType string `json:"vehicle_type"`
	Color       string `json:"color"`
	Model       string `json:"model"`
}

// VehicleAuthResult は車両認証のレスポンス
type VehicleAuthResult struct {
	Success     bool           `json:"success"`
	Vehicle     *VehicleRecord `json:"vehicle"`
	PlateNumber string         `json:"plate_number"`
	Message     string         `json:"message"`
}

// DetectionImage は人物検知イベント画像のメタデータ
type DetectionImage struct {
	ID        int    `json:"id"`
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}
