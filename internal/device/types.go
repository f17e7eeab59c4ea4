package device

import (
	"context"
	"errors"
)

// センチネルエラー。呼び出し側は errors.Is で分類する
var (
	// ErrPermissionDenied はプラットフォームがデバイスアクセスを許可していない
	ErrPermissionDenied = errors.New("デバイスへのアクセスが許可されていません")

	// ErrDeviceUnavailable はデバイスのオープンに失敗した
	ErrDeviceUnavailable = errors.New("デバイスが利用できません")

	// ErrNoActiveStream はセッションがまだフレームを生成していない
	ErrNoActiveStream = errors.New("アクティブなストリームがありません")
)

// Descriptor は列挙されたキャプチャデバイスを表す
// デバイスピッカーを開くたびに新しく列挙され、永続化されない
type Descriptor struct {
	ID      string // デバイスの一意識別子（デバイスパス）
	Label   string // デバイスの表示名
	BuiltIn bool   // 内蔵カメラかどうか
}

// Frame はライブストリームからサンプリングされた1フレーム
// 生成された時点で不変。再キャプチャは新しい値を生成する
type Frame struct {
	Data     []byte  // エンコード済み画像データ
	MimeType string  // 画像のMIMEタイプ（image/jpeg）
	Quality  float64 // エンコード品質
}

// Session はひとつのデバイスに束縛されたライブキャプチャハンドル
// Manager ごとに同時に最大1つだけライブになる
type Session struct {
	ID       string // セッションの一意識別子
	DeviceID string // オープン対象のデバイスID

	handle Handle
	closed bool
}

// Discovery はキャプチャデバイスの検出機能を提供する
type Discovery interface {
	// ListDevices は利用可能なデバイスを列挙する
	// 列挙前に使い捨ての権限プローブを行い、即座に解放する
	// （列挙だけでハードウェアを掴み続けてはならない）
	ListDevices(ctx context.Context) ([]Descriptor, error)
}

// Opener は実ハードウェアへのアクセスを抽象化する
type Opener interface {
	// Open はデバイスのストリームを開き、ハンドルを返す
	Open(ctx context.Context, deviceID string) (Handle, error)
}

// Handle はオープン済みストリームの操作を提供する
type Handle interface {
	// Ready はストリームがフレームを生成できる状態かを返す
	Ready() bool

	// CaptureFrame はネイティブ解像度で1フレームをJPEGとして取得する
	CaptureFrame(ctx context.Context) ([]byte, error)

	// Close はハードウェアハンドルを解放する
	// 使用中インジケーターの消灯は外部から観測可能な副作用であり、
	// 「停止済み」ストリームを裏で保持し続けてはならない
	Close() error
}
