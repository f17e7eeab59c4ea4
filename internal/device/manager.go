package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager はメディアストリームの排他的なライフサイクルを管理する
// 常に最大1つのライブセッションのみを保持し、新しいオープンは
// 必ず直前のクローズ完了後に発行される
type Manager struct {
	discovery Discovery
	opener    Opener

	// デバイス切り替え時の待機時間。ドライバーのteardown競合を吸収する
	switchSettle time.Duration

	// キャプチャ品質（Frameに記録される）
	captureQuality float64

	mu      sync.Mutex
	current *Session
}

// NewManager は新しいManagerを作成する
func NewManager(discovery Discovery, opener Opener, switchSettle time.Duration, captureQuality float64) *Manager {
	return &Manager{
		discovery:      discovery,
		opener:         opener,
		switchSettle:   switchSettle,
		captureQuality: captureQuality,
	}
}

// ListDevices は利用可能なキャプチャデバイスを新しく列挙する
// 結果はキャッシュされない。ピッカーを開くたびに呼び直すこと
func (m *Manager) ListDevices(ctx context.Context) ([]Descriptor, error) {
	devices, err := m.discovery.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("デバイスの列挙に失敗: %w", err)
	}
	return devices, nil
}

// SelectDefault はデフォルトで選択すべきデバイスを返す
// 優先順位: 内蔵カメラを示すラベル > 外付けを示さないラベル > 先頭
// リストが空の場合はnilを返す
func SelectDefault(devices []Descriptor) *Descriptor {
	if len(devices) == 0 {
		return nil
	}

	// 内蔵カメラを優先
	for i := range devices {
		if devices[i].BuiltIn || labelContainsAny(devices[i].Label, builtInMarkers) {
			return &devices[i]
		}
	}

	// 外付けを示すラベルを持たないものを次点とする
	for i := range devices {
		if !labelContainsAny(devices[i].Label, externalMarkers) {
			return &devices[i]
		}
	}

	// どちらも該当しない場合は先頭のデバイス
	return &devices[0]
}

// Open は指定デバイスのセッションを開く
// 既存のライブセッションがあれば先に解放し、設定された待機時間を
// 置いてから新しいオープンを発行する。全体がひとつのミューテックスで
// 直列化されるため、クローズ保留中のオープンは発生しない
func (m *Manager) Open(ctx context.Context, deviceID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 既存セッションを先に解放する
	if m.current != nil && !m.current.closed {
		m.closeLocked(m.current)

		// ドライバー側のteardownが完了するまで待つ
		if m.switchSettle > 0 {
			select {
			case <-time.After(m.switchSettle):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	m.current = nil

	handle, err := m.opener.Open(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("デバイス %s のオープンに失敗: %w", deviceID, err)
	}

	session := &Session{
		ID:       uuid.New().String(),
		DeviceID: deviceID,
		handle:   handle,
	}
	m.current = session

	return session, nil
}

// Close はセッションを解放する。冪等であり、解放済みセッションへの
// 再クローズはエラーにしない
func (m *Manager) Close(session *Session) {
	if session == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeLocked(session)
	if m.current == session {
		m.current = nil
	}
}

// CloseCurrent は現在のライブセッションを解放する（存在すれば）
func (m *Manager) CloseCurrent() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.closeLocked(m.current)
		m.current = nil
	}
}

// CaptureFrame はライブセッションから1フレームをサンプリングする
// セッションがフレームを生成できる状態でなければ ErrNoActiveStream を返す
func (m *Manager) CaptureFrame(ctx context.Context, session *Session) (*Frame, error) {
	m.mu.Lock()
	if session == nil || session.closed || m.current != session {
		m.mu.Unlock()
		return nil, ErrNoActiveStream
	}
	handle := session.handle
	m.mu.Unlock()

	if !handle.Ready() {
		return nil, ErrNoActiveStream
	}

	data, err := handle.CaptureFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("フレームキャプチャに失敗: %w", err)
	}

	// 以前のフレームと共有されない新しい値を返す
	frame := &Frame{
		Data:     make([]byte, len(data)),
		MimeType: "image/jpeg",
		Quality:  m.captureQuality,
	}
	copy(frame.Data, data)

	return frame, nil
}

// Current は現在のライブセッションを返す（なければnil）
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// closeLocked はロック保持前提でセッションを解放する
func (m *Manager) closeLocked(session *Session) {
	if session.closed {
		return
	}

	session.closed = true
	if session.handle != nil {
		// ハンドル解放の失敗はセッション状態に影響させない
		_ = session.handle.Close()
	}
}
