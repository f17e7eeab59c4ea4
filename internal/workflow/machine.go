package workflow

import (
	"context"
	"sync"

	"monban/internal/device"

	"github.com/google/uuid"
)

// Machine はワークフロー1回分の状態機械
// ポップアップを開いてから結果を閉じるまでの一連の試行を所有する
type Machine struct {
	id   string
	mode Mode
	flow Flow

	devices *device.Manager

	mu sync.Mutex

	// busy は遷移の非同期ステップが未完了であることを示す
	// 立っている間、新しいユーザー操作は ErrBusy で拒否される
	busy bool

	// commitInFlight はコミットの往復が進行中であることを示す
	// 立っている間、2回目のコミット要求は拒否される
	commitInFlight bool

	// gen はキャンセルごとに進む世代カウンター
	// 進行中の非同期結果は世代が一致しない場合に破棄される
	gen int

	phase          Phase
	deviceList     []device.Descriptor
	deviceID       string
	session        *device.Session
	frame          *device.Frame
	fields         Fields
	images         map[string]string
	overrideReason string
	lastError      string
	outcome        *Outcome
}

// NewMachine は新しいMachineを作成する（初期状態はIdle）
func NewMachine(mode Mode, flow Flow, devices *device.Manager) *Machine {
	return &Machine{
		id:      uuid.New().String(),
		mode:    mode,
		flow:    flow,
		devices: devices,
		phase:   PhaseIdle,
	}
}

// ID はワークフローインスタンスの識別子を返す
func (m *Machine) ID() string {
	return m.id
}

// Open はポップアップを開き、デバイス列挙とデフォルト選択を行う
// 列挙とデフォルトのオープンが成功すればライブプレビューへ進む
// 権限拒否は永続的なインラインエラーとして保持され、Openの再実行で
// リトライできる
func (m *Machine) Open(ctx context.Context) error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.phase != PhaseIdle && m.phase != PhaseDeviceSelect {
		m.mu.Unlock()
		return ErrInvalidPhase
	}
	m.busy = true
	m.phase = PhaseDeviceSelect
	m.lastError = ""
	gen := m.gen
	m.mu.Unlock()

	devices, err := m.devices.ListDevices(ctx)
	if err != nil {
		m.apply(gen, func() {
			// DeviceSelectに留まり、インラインエラーとして表示する
			m.lastError = err.Error()
		})
		return err
	}

	selected := device.SelectDefault(devices)

	m.apply(gen, func() {
		m.deviceList = devices
	})

	if selected == nil {
		m.apply(gen, func() {
			m.lastError = "利用可能なデバイスがありません"
		})
		return nil
	}

	return m.openDevice(ctx, gen, selected.ID)
}

// SwitchDevice はプレビュー中のデバイスを切り替える
// 直前のセッションのクローズはManagerが先行して行う
func (m *Machine) SwitchDevice(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.phase != PhaseLivePreview && m.phase != PhaseDeviceSelect {
		m.mu.Unlock()
		return ErrInvalidPhase
	}
	m.busy = true
	m.lastError = ""
	gen := m.gen
	m.mu.Unlock()

	return m.openDevice(ctx, gen, deviceID)
}

// openDevice はデバイスを開いてライブプレビューへ遷移する
func (m *Machine) openDevice(ctx context.Context, gen int, deviceID string) error {
	session, err := m.devices.Open(ctx, deviceID)
	if err != nil {
		m.apply(gen, func() {
			// 現在のフェーズに留まり、インラインエラーとして表示する
			m.lastError = err.Error()
		})
		return err
	}

	m.apply(gen, func() {
		m.session = session
		m.deviceID = deviceID
		m.phase = PhaseLivePreview
	})

	// 世代が変わっていた場合、開いたばかりのセッションも解放する
	m.mu.Lock()
	stale := m.session != session
	m.mu.Unlock()
	if stale {
		m.devices.Close(session)
	}

	return nil
}

// Capture はライブストリームから1フレームをサンプリングする
// 2回連続でキャプチャしても前のフレームは変更されない
func (m *Machine) Capture(ctx context.Context) error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.phase != PhaseLivePreview && m.phase != PhaseCaptured {
		m.mu.Unlock()
		return ErrInvalidPhase
	}
	m.busy = true
	m.lastError = ""
	session := m.session
	gen := m.gen
	m.mu.Unlock()

	frame, err := m.devices.CaptureFrame(ctx, session)
	if err != nil {
		m.apply(gen, func() {
			m.lastError = err.Error()
		})
		return err
	}

	m.apply(gen, func() {
		m.frame = frame
		m.phase = PhaseCaptured
	})

	return nil
}

// Submit はキャプチャ済みフレームをバックエンドの抽出へ送る
// 遷移は非同期に完了し、結果に応じて確認・手動入力・プレビュー復帰の
// いずれかへ必ず解決する。ServerVerifyingで停滞することはない
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.phase != PhaseCaptured {
		m.mu.Unlock()
		return ErrInvalidPhase
	}
	m.busy = true
	m.lastError = ""
	m.phase = PhaseServerVerifying
	frame := m.frame
	gen := m.gen
	m.mu.Unlock()

	go func() {
		ext := m.flow.Extract(ctx, m.mode, frame)

		m.apply(gen, func() {
			switch {
			case ext.Advance:
				m.fields = ext.Fields.Clone()
				m.images = ext.Images
				m.phase = PhaseConfirming

			case ext.OverrideEligible:
				m.fields = ext.Fields.Clone()
				m.images = ext.Images
				m.overrideReason = ext.Reason
				m.phase = PhaseManualOverride

			default:
				// エラーを表示して再キャプチャへ戻す
				if ext.Err != nil {
					m.lastError = ext.Err.Error()
				}
				m.frame = nil
				m.phase = PhaseLivePreview
			}
		})
	}()

	return nil
}

// AcceptOverride は手動入力を受け入れ、空フィールドで確認へ進む
func (m *Machine) AcceptOverride() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return ErrBusy
	}
	if m.phase != PhaseManualOverride {
		return ErrInvalidPhase
	}

	m.overrideReason = ""
	m.phase = PhaseConfirming
	return nil
}

// RejectOverride は手動入力を拒否し、再キャプチャのためプレビューへ戻す
func (m *Machine) RejectOverride() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return ErrBusy
	}
	if m.phase != PhaseManualOverride {
		return ErrInvalidPhase
	}

	m.overrideReason = ""
	m.fields = nil
	m.images = nil
	m.frame = nil
	m.phase = PhaseLivePreview
	return nil
}

// SetField は確認中のフィールドを編集する
func (m *Machine) SetField(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseConfirming {
		return ErrInvalidPhase
	}

	if m.fields == nil {
		m.fields = Fields{}
	}
	m.fields[key] = value
	return nil
}

// Confirm は編集済みフィールドをコミットする
// コミットが進行中の間、2回目の要求は ErrCommitInFlight で拒否される
// コミット失敗時はフレームとフィールドを保持したまま確認に留まり、
// 再キャプチャなしで再試行できる
func (m *Machine) Confirm(ctx context.Context) error {
	m.mu.Lock()
	if m.commitInFlight {
		m.mu.Unlock()
		return ErrCommitInFlight
	}
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.phase != PhaseConfirming {
		m.mu.Unlock()
		return ErrInvalidPhase
	}

	// 必須フィールドの事前チェック。バックエンド側でも再検証される
	for _, key := range m.flow.RequiredFields(m.mode) {
		if m.fields[key] == "" {
			m.mu.Unlock()
			return ErrMissingFields
		}
	}

	m.busy = true
	m.commitInFlight = true
	m.lastError = ""
	m.phase = PhaseCommitting
	fields := m.fields.Clone()
	images := m.images
	gen := m.gen
	m.mu.Unlock()

	go func() {
		outcome := m.flow.Commit(ctx, m.mode, fields, images)

		m.apply(gen, func() {
			m.commitInFlight = false

			if !outcome.Committed {
				// 再試行可能。フレームと編集済みフィールドは保持される
				m.lastError = outcome.Message
				m.phase = PhaseConfirming
				return
			}

			m.outcome = &outcome
			m.phase = PhaseResult
		})
	}()

	return nil
}

// Cancel は任意の非終端状態からワークフローを破棄する
// ハードウェアは同期的に解放され、進行中のネットワーク呼び出しの
// 結果は到着時に破棄される
func (m *Machine) Cancel() {
	m.mu.Lock()
	session := m.session
	m.gen++
	m.resetLocked()
	m.mu.Unlock()

	// ストリーム解放は呼び出し側から見て同期的に行う
	if session != nil {
		m.devices.Close(session)
	}
}

// Dismiss は結果表示を閉じ、新しいIdleを導出する
func (m *Machine) Dismiss() {
	m.Cancel()
}

// Snapshot は観測可能な現在状態を返す
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := State{
		ID:             m.id,
		Kind:           m.flow.Kind(),
		Mode:           m.mode,
		Phase:          m.phase,
		DeviceID:       m.deviceID,
		HasFrame:       m.frame != nil,
		OverrideReason: m.overrideReason,
		LastError:      m.lastError,
		Outcome:        m.outcome,
	}

	if len(m.deviceList) > 0 {
		state.Devices = make([]device.Descriptor, len(m.deviceList))
		copy(state.Devices, m.deviceList)
	}
	if m.fields != nil {
		state.Fields = m.fields.Clone()
	}

	return state
}

// Frame は現在のキャプチャ済みフレームを返す（なければnil）
func (m *Machine) Frame() *device.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

// apply は世代が一致する場合のみ遷移結果を反映する
// キャンセル済みワークフローへの遅延結果はここで破棄される
func (m *Machine) apply(gen int, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return // ワークフローはリセット済み。結果は破棄する
	}

	fn()
	m.busy = false
}

// resetLocked は状態をIdleに戻す（ロック保持前提）
func (m *Machine) resetLocked() {
	m.busy = false
	m.commitInFlight = false
	m.phase = PhaseIdle
	m.deviceList = nil
	m.deviceID = ""
	m.session = nil
	m.frame = nil
	m.fields = nil
	m.images = nil
	m.overrideReason = ""
	m.lastError = ""
	m.outcome = nil
}
