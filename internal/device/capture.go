package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
)

// V4L2Opener はffmpeg経由でV4L2デバイスを開くOpener実装
type V4L2Opener struct {
	quality float64
}

// NewV4L2Opener は新しいV4L2Openerを作成する
func NewV4L2Opener(quality float64) Opener {
	return &V4L2Opener{quality: quality}
}

// Open はデバイスのストリームを開き、ハンドルを返す
// テストキャプチャが成功した時点でハンドルはready状態になる
func (o *V4L2Opener) Open(ctx context.Context, deviceID string) (Handle, error) {
	handle := &v4l2Handle{
		devicePath: deviceID,
		quality:    o.quality,
	}

	// デバイステストを実行。成功すればフレーム生成可能とみなす
	if err := handle.testCapture(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, deviceID, err)
	}
	handle.ready = true

	return handle, nil
}

// v4l2Handle はオープン済みV4L2デバイスのハンドル
type v4l2Handle struct {
	devicePath string
	quality    float64

	mu     sync.Mutex
	ready  bool
	closed bool
}

// Ready はストリームがフレームを生成できる状態かを返す
func (h *v4l2Handle) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready && !h.closed
}

// CaptureFrame はネイティブ解像度で1フレームをJPEGとして取得する
func (h *v4l2Handle) CaptureFrame(ctx context.Context) ([]byte, error) {
	h.mu.Lock()
	if h.closed || !h.ready {
		h.mu.Unlock()
		return nil, ErrNoActiveStream
	}
	h.mu.Unlock()

	// ffmpegを使って1フレームをJPEGとしてキャプチャ
	// video_sizeを指定しないことでデバイスのネイティブ解像度を使う
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-i", h.devicePath,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", qualityToFFmpegQ(h.quality),
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("JPEGフレームキャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// Close はハードウェアハンドルを解放する
func (h *v4l2Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil // 既に解放済み
	}

	h.closed = true
	h.ready = false
	return nil
}

// testCapture はデバイスが実際にフレームを生成できるか確認する
func (h *v4l2Handle) testCapture(ctx context.Context) error {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-i", h.devicePath,
		"-vframes", "1",
		"-f", "null",
		"-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("テストキャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}

	return nil
}

// qualityToFFmpegQ はエンコード品質(0.0-1.0)をffmpegの-q:v値(2-31)に変換する
func qualityToFFmpegQ(quality float64) string {
	if quality >= 0.95 {
		return "2"
	}
	if quality >= 0.8 {
		return "3"
	}
	if quality >= 0.6 {
		return "5"
	}
	return "10"
}

// MockOpener はテスト用のモックOpener実装
// オープン・クローズ回数を記録し、排他性の検証に使う
type MockOpener struct {
	mu sync.Mutex

	// テスト制御用
	failOpen     bool
	openNotReady bool

	// 呼び出し記録
	openCount  int
	closeCount int
	frameSeq   int
	handles    []*MockHandle
}

// NewMockOpener は新しいMockOpenerを作成する
func NewMockOpener() *MockOpener {
	return &MockOpener{}
}

// Open はモックハンドルを返す
func (o *MockOpener) Open(_ context.Context, deviceID string) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.failOpen {
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, deviceID)
	}

	o.openCount++
	handle := &MockHandle{
		opener:   o,
		deviceID: deviceID,
		ready:    !o.openNotReady,
	}
	o.handles = append(o.handles, handle)
	return handle, nil
}

// OpenCount はオープン回数を返す
func (o *MockOpener) OpenCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.openCount
}

// CloseCount はクローズ回数を返す
func (o *MockOpener) CloseCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closeCount
}

// LiveHandles は未クローズのハンドル数を返す
func (o *MockOpener) LiveHandles() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	live := 0
	for _, h := range o.handles {
		if !h.closed {
			live++
		}
	}
	return live
}

// SetFailOpen はテスト用にOpen失敗を設定する
func (o *MockOpener) SetFailOpen(fail bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failOpen = fail
}

// SetOpenNotReady はテスト用に未ready状態でのオープンを設定する
func (o *MockOpener) SetOpenNotReady(notReady bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.openNotReady = notReady
}

// MockHandle はテスト用のモックハンドル
type MockHandle struct {
	opener   *MockOpener
	deviceID string
	ready    bool
	closed   bool
}

// Ready はストリームがフレームを生成できる状態かを返す
func (h *MockHandle) Ready() bool {
	h.opener.mu.Lock()
	defer h.opener.mu.Unlock()
	return h.ready && !h.closed
}

// SetReady はテスト用にready状態を設定する
func (h *MockHandle) SetReady(ready bool) {
	h.opener.mu.Lock()
	defer h.opener.mu.Unlock()
	h.ready = ready
}

// CaptureFrame は呼び出しごとに異なる内容のフレームを返す
func (h *MockHandle) CaptureFrame(_ context.Context) ([]byte, error) {
	h.opener.mu.Lock()
	defer h.opener.mu.Unlock()

	if h.closed || !h.ready {
		return nil, ErrNoActiveStream
	}

	h.opener.frameSeq++
	return []byte(fmt.Sprintf("frame-%s-%d", h.deviceID, h.opener.frameSeq)), nil
}

// Close はモックハンドルを解放する
func (h *MockHandle) Close() error {
	h.opener.mu.Lock()
	defer h.opener.mu.Unlock()

	if h.closed {
		return nil
	}

	h.closed = true
	h.ready = false
	h.opener.closeCount++
	return nil
}
