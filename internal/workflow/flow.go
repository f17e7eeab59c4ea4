package workflow

import (
	"context"
	"encoding/base64"
	"fmt"

	"monban/internal/device"
	"monban/internal/recog"
)

// Flow はワークフローのドメイン固有部分（抽出とコミット）を抽象化する
type Flow interface {
	// Kind は対象ドメインを返す
	Kind() Kind

	// RequiredFields はコミット前に入力必須のフィールドキーを返す
	RequiredFields(mode Mode) []string

	// Extract はキャプチャ済みフレームをバックエンドに送り、
	// フィールド抽出を試みる
	Extract(ctx context.Context, mode Mode, frame *device.Frame) Extraction

	// Commit は確認済みのフィールドをバックエンドにコミットする
	Commit(ctx context.Context, mode Mode, fields Fields, images map[string]string) Outcome
}

// IdentityFlow は身分証OCRと顔登録・認証のFlow実装
// 抽出がどのような形で失敗しても空フィールドで確認フェーズへ進む。
// ネットワーク障害が手動修正を妨げてはならない
type IdentityFlow struct {
	client *recog.Client
	idType string
}

// NewIdentityFlow は新しいIdentityFlowを作成する
func NewIdentityFlow(client *recog.Client, idType string) *IdentityFlow {
	return &IdentityFlow{client: client, idType: idType}
}

// Kind は対象ドメインを返す
func (f *IdentityFlow) Kind() Kind {
	return KindIdentity
}

// RequiredFields はコミット前に入力必須のフィールドキーを返す
func (f *IdentityFlow) RequiredFields(_ Mode) []string {
	return []string{"name", "identifier"}
}

// Extract は身分証画像からOCRで氏名と識別子を抽出する
func (f *IdentityFlow) Extract(ctx context.Context, _ Mode, frame *device.Frame) Extraction {
	empty := Extraction{
		Advance: true,
		Fields:  Fields{"name": "", "identifier": ""},
	}

	result, err := f.client.ExtractID(ctx, f.idType, base64.StdEncoding.EncodeToString(frame.Data))
	if err != nil {
		// 抽出失敗はデータとして扱う。空フィールドのまま確認へ進む
		return empty
	}

	if !result.Success {
		return empty
	}

	return Extraction{
		Advance: true,
		Fields: Fields{
			"name":       result.Name,
			"identifier": result.Identifier,
		},
	}
}

// Commit は顔登録または顔認証をコミットする
func (f *IdentityFlow) Commit(ctx context.Context, mode Mode, fields Fields, _ map[string]string) Outcome {
	switch mode {
	case ModeAuthenticate:
		result, err := f.client.Authenticate(ctx, f.idType, fields["name"], fields["identifier"])
		if err != nil {
			return Outcome{Committed: false, Message: fmt.Sprintf("認証リクエストに失敗しました: %v", err)}
		}

		// 認証の往復は完結している。不一致は失敗の結果として表示する
		return Outcome{
			Committed: true,
			Success:   result.Success,
			Message:   pickMessage(result.Message, result.Status),
			Payload: map[string]string{
				"status":     result.Status,
				"name":       result.Name,
				"identifier": result.Identifier,
			},
		}

	default: // ModeRegister
		result, err := f.client.RegisterFace(ctx, f.idType, fields["name"], fields["identifier"])
		if err != nil {
			return Outcome{Committed: false, Message: fmt.Sprintf("登録リクエストに失敗しました: %v", err)}
		}

		if !result.Success {
			// 業務エラーは確認フェーズに留まり再試行できる
			return Outcome{Committed: false, Message: pickMessage(result.Message, "登録に失敗しました")}
		}

		return Outcome{
			Committed: true,
			Success:   true,
			Message:   fmt.Sprintf("%s を登録しました", result.UserName),
			Payload: map[string]string{
				"userName":   result.UserName,
				"userImages": fmt.Sprintf("%d", result.UserImages),
			},
		}
	}
}

// VehicleFlow はナンバープレート抽出と車両登録・認証のFlow実装
// バックエンドが manual_override_available を明示した場合のみ
// 手動入力へ遷移する。それ以外の抽出失敗はエラーとして表示し
// ライブプレビューへ戻す
type VehicleFlow struct {
	client *recog.Client
}

// NewVehicleFlow は新しいVehicleFlowを作成する
func NewVehicleFlow(client *recog.Client) *VehicleFlow {
	return &VehicleFlow{client: client}
}

// Kind は対象ドメインを返す
func (f *VehicleFlow) Kind() Kind {
	return KindVehicle
}

// RequiredFields はコミット前に入力必須のフィールドキーを返す
// 登録では所有者と車種も必須になる
func (f *VehicleFlow) RequiredFields(mode Mode) []string {
	if mode == ModeAuthenticate {
		return []string{"plate_number"}
	}
	return []string{"plate_number", "owner", "vehicle_type"}
}

// Extract は車両画像からナンバープレートを抽出する
func (f *VehicleFlow) Extract(ctx context.Context, _ Mode, frame *device.Frame) Extraction {
	result, err := f.client.ProcessVehicleImage(ctx, frame.Data)
	if err != nil {
		return Extraction{Err: fmt.Errorf("画像の処理に失敗しました: %w", err)}
	}

	if !result.Success {
		if result.ManualOverrideAvailable {
			// バックエンドの明示的な許可がある場合のみ手動入力へ
			return Extraction{
				OverrideEligible: true,
				Reason:           pickMessage(result.Message, "ナンバープレートを検出できませんでした"),
				Fields: Fields{
					"plate_number": "",
					"owner":        "",
					"vehicle_type": "",
					"color":        "",
					"model":        "",
				},
				Images: map[string]string{
					"full_image": result.FullImage,
				},
			}
		}
		return Extraction{Err: fmt.Errorf("%s", pickMessage(result.Message, "画像の処理に失敗しました"))}
	}

	return Extraction{
		Advance: true,
		Fields: Fields{
			"plate_number": result.PlateNumber,
			"owner":        "",
			"vehicle_type": "",
			"color":        "",
			"model":        "",
		},
		Images: map[string]string{
			"full_image":  result.FullImage,
			"plate_image": result.PlateImage,
		},
	}
}

// Commit は車両登録または車両認証をコミットする
func (f *VehicleFlow) Commit(ctx context.Context, mode Mode, fields Fields, images map[string]string) Outcome {
	switch mode {
	case ModeAuthenticate:
		result, err := f.client.AuthenticateVehicle(ctx, fields["plate_number"])
		if err != nil {
			return Outcome{Committed: false, Message: fmt.Sprintf("認証リクエストに失敗しました: %v", err)}
		}

		payload := map[string]string{"plate_number": result.PlateNumber}
		if result.Vehicle != nil {
			payload["owner"] = result.Vehicle.Owner
			payload["vehicle_type"] = result.Vehicle.VehicleType
			payload["color"] = result.Vehicle.Color
			payload["model"] = result.Vehicle.Model
		}

		return Outcome{
			Committed: true,
			Success:   result.Success,
			Message:   pickMessage(result.Message, ""),
			Payload:   payload,
		}

	default: // ModeRegister
		reg := recog.VehicleRegistration{
			PlateNumber: fields["plate_number"],
			Owner:       fields["owner"],
			VehicleType: fields["vehicle_type"],
			Color:       fields["color"],
			Model:       fields["model"],
			FullImage:   images["full_image"],
			PlateImage:  images["plate_image"],
		}

		result, err := f.client.RegisterVehicle(ctx, reg)
		if err != nil {
			return Outcome{Committed: false, Message: fmt.Sprintf("登録リクエストに失敗しました: %v", err)}
		}

		if !result.Success {
			return Outcome{Committed: false, Message: pickMessage(result.Message, "登録に失敗しました")}
		}

		return Outcome{
			Committed: true,
			Success:   true,
			Message:   "車両を登録しました",
			Payload:   map[string]string{"plate_number": reg.PlateNumber},
		}
	}
}

// pickMessage は最初の空でないメッセージを返す
func pickMessage(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
