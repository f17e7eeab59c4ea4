package livefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockBackend はテスト用のBackend実装
type mockBackend struct {
	mu sync.Mutex

	startCount int
	stopCount  int

	failStart bool
	failStop  bool

	// 設定するとStartVideoがクローズされるまでブロックする
	blockStart chan struct{}
}

func (b *mockBackend) StartVideo(_ context.Context) error {
	b.mu.Lock()
	block := b.blockStart
	fail := b.failStart
	b.startCount++
	b.mu.Unlock()

	if block != nil {
		<-block
	}
	if fail {
		return errors.New("カメラの準備に失敗")
	}
	return nil
}

func (b *mockBackend) StopVideo(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopCount++
	if b.failStop {
		return errors.New("停止通知に失敗")
	}
	return nil
}

func (b *mockBackend) VideoFeedURL(token string) string {
	return fmt.Sprintf("http://backend/video_feed?timestamp=%s", token)
}

func (b *mockBackend) StartCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startCount
}

func (b *mockBackend) StopCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopCount
}

func TestControllerStartStop(t *testing.T) {
	backend := &mockBackend{}
	controller := NewController(backend, 0)
	ctx := context.Background()

	if err := controller.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !controller.Playing() {
		t.Error("Playing() = false, want true")
	}
	if controller.FeedURL() == "" {
		t.Error("FeedURL() が空")
	}

	if err := controller.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if controller.Playing() {
		t.Error("Playing() = true, want false")
	}
	if controller.FeedURL() != "" {
		t.Error("停止後も FeedURL() が残っている")
	}
	if backend.StopCount() != 1 {
		t.Errorf("StopCount = %d, want 1", backend.StopCount())
	}
}

func TestControllerStartIsIdempotentWhilePlaying(t *testing.T) {
	backend := &mockBackend{}
	controller := NewController(backend, 0)
	ctx := context.Background()

	if err := controller.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// 再生中の再開始は何もしない
	if err := controller.Start(ctx); err != nil {
		t.Fatalf("2回目の Start() error = %v", err)
	}

	if backend.StartCount() != 1 {
		t.Errorf("StartCount = %d, want 1", backend.StartCount())
	}
}

func TestControllerRestartUsesFreshToken(t *testing.T) {
	backend := &mockBackend{}
	controller := NewController(backend, 0)
	ctx := context.Background()

	seq := 0
	controller.SetTokenFunc(func() string {
		seq++
		return fmt.Sprintf("token-%d", seq)
	})

	if err := controller.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	first := controller.Token()

	if err := controller.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := controller.Start(ctx); err != nil {
		t.Fatalf("再開の Start() error = %v", err)
	}
	second := controller.Token()

	// 再開はキャッシュ済みフレームを受け取らないよう新しいトークンを使う
	if first == second {
		t.Errorf("トークンが再利用された: %s", first)
	}
	if controller.FeedURL() != backend.VideoFeedURL(second) {
		t.Errorf("FeedURL = %s, want %s", controller.FeedURL(), backend.VideoFeedURL(second))
	}
}

func TestControllerRejectsReentrantStart(t *testing.T) {
	backend := &mockBackend{blockStart: make(chan struct{})}
	controller := NewController(backend, 0)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- controller.Start(ctx)
	}()

	// 1回目のStartVideoがブロックしている間の操作は拒否される
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if backend.StartCount() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := controller.Start(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("進行中の Start() error = %v, want ErrBusy", err)
	}
	if err := controller.Stop(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("進行中の Stop() error = %v, want ErrBusy", err)
	}

	close(backend.blockStart)
	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func TestControllerStartFailureLeavesStopped(t *testing.T) {
	backend := &mockBackend{failStart: true}
	controller := NewController(backend, 0)

	if err := controller.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want error")
	}

	if controller.Playing() {
		t.Error("失敗後に Playing() = true")
	}

	// 失敗後は再試行できる
	backend.mu.Lock()
	backend.failStart = false
	backend.mu.Unlock()

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("再試行の Start() error = %v", err)
	}
}

func TestControllerStopFailureDoesNotRevertState(t *testing.T) {
	backend := &mockBackend{failStop: true}
	controller := NewController(backend, 0)
	ctx := context.Background()

	if err := controller.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// 停止通知の失敗は返されるが、状態は停止のまま
	if err := controller.Stop(ctx); err == nil {
		t.Fatal("Stop() error = nil, want error")
	}
	if controller.Playing() {
		t.Error("停止失敗後に Playing() = true")
	}
	if controller.FeedURL() != "" {
		t.Error("停止失敗後も FeedURL() が残っている")
	}
}

func TestControllerToggle(t *testing.T) {
	backend := &mockBackend{}
	controller := NewController(backend, 0)
	ctx := context.Background()

	if err := controller.Toggle(ctx); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !controller.Playing() {
		t.Error("Playing() = false, want true")
	}

	if err := controller.Toggle(ctx); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if controller.Playing() {
		t.Error("Playing() = true, want false")
	}
}

func TestControllerShutdownFiresStopExactlyOnce(t *testing.T) {
	backend := &mockBackend{}
	controller := NewController(backend, 0)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// 2回呼んでも暗黙停止は1回だけ
	controller.Shutdown()
	controller.Shutdown()

	if controller.Playing() {
		t.Error("Shutdown後に Playing() = true")
	}

	// fire-and-forgetの停止通知が届くのを待つ
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if backend.StopCount() > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if backend.StopCount() != 1 {
		t.Errorf("StopCount = %d, want 1", backend.StopCount())
	}
}

func TestControllerShutdownDuringStartResolvesToStopped(t *testing.T) {
	backend := &mockBackend{blockStart: make(chan struct{})}
	controller := NewController(backend, 0)

	done := make(chan error, 1)
	go func() {
		done <- controller.Start(context.Background())
	}()

	// StartVideoがブロックしている間にビューが破棄される
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if backend.StartCount() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	controller.Shutdown()

	// 進行中のStartは再生状態に入らず、起動済みカメラを停止する
	close(backend.blockStart)
	if err := <-done; !errors.Is(err, ErrShutdown) {
		t.Fatalf("Start() error = %v, want ErrShutdown", err)
	}

	if controller.Playing() {
		t.Error("Shutdown後に Playing() = true")
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if backend.StopCount() > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if backend.StopCount() != 1 {
		t.Errorf("StopCount = %d, want 1", backend.StopCount())
	}

	// 破棄後の再開始は拒否される
	if err := controller.Start(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Errorf("破棄後の Start() error = %v, want ErrShutdown", err)
	}
}

func TestControllerShutdownWhileStoppedSendsNothing(t *testing.T) {
	backend := &mockBackend{}
	controller := NewController(backend, 0)

	controller.Shutdown()

	time.Sleep(20 * time.Millisecond)
	if backend.StopCount() != 0 {
		t.Errorf("StopCount = %d, want 0", backend.StopCount())
	}
}
