package livefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBusy は開始または停止が既に進行中
var ErrBusy = errors.New("ライブフィードの操作が進行中です")

// ErrShutdown はコントローラーが破棄済み
var ErrShutdown = errors.New("ライブフィードは破棄済みです")

// Backend はライブフィードのサーバー側操作を抽象化する
type Backend interface {
	// StartVideo はカメラリソースの準備を依頼する
	StartVideo(ctx context.Context) error

	// StopVideo はカメラリソースの解放を依頼する
	StopVideo(ctx context.Context) error

	// VideoFeedURL はトークン付きストリームURLを組み立てる
	VideoFeedURL(token string) string
}

// Controller はライブフィードの開始・停止を管理する
// 単発キャプチャのセッションとは独立して動作する
type Controller struct {
	backend Backend

	// 準備依頼からストリーム消費開始までの待機時間
	startSettle time.Duration

	// トークン生成関数（テストで差し替え可能）
	tokenFn func() string

	mu       sync.Mutex
	busy     bool
	playing  bool
	shutdown bool
	token    string
	feedURL  string

	shutdownOnce sync.Once
}

// NewController は新しいControllerを作成する
func NewController(backend Backend, startSettle time.Duration) *Controller {
	return &Controller{
		backend:     backend,
		startSettle: startSettle,
		tokenFn: func() string {
			return fmt.Sprintf("%d", time.Now().UnixNano())
		},
	}
}

// Start はライブフィードを開始する
// 既に再生中なら何もしない。開始・停止が進行中なら ErrBusy を返す
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return ErrShutdown
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.playing {
		c.mu.Unlock()
		return nil // 既に再生中
	}
	c.busy = true
	c.mu.Unlock()

	// バックエンドにカメラ準備を依頼する
	if err := c.backend.StartVideo(ctx); err != nil {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		return fmt.Errorf("ライブフィードの開始に失敗: %w", err)
	}

	// カメラが準備できるまで有界の待機を置く
	if c.startSettle > 0 {
		select {
		case <-time.After(c.startSettle):
		case <-ctx.Done():
			c.mu.Lock()
			c.busy = false
			c.mu.Unlock()
			return ctx.Err()
		}
	}

	c.mu.Lock()
	// 準備中にShutdownが走っていた場合、再生状態には入らず
	// 起動済みのカメラを停止する
	if c.shutdown {
		c.busy = false
		c.mu.Unlock()
		go func() {
			_ = c.backend.StopVideo(context.Background())
		}()
		return ErrShutdown
	}
	// 毎回新しいトークンを使う。再開後にキャッシュ済みフレームが
	// 配信されることを防ぐ
	c.token = c.tokenFn()
	c.feedURL = c.backend.VideoFeedURL(c.token)
	c.playing = true
	c.busy = false
	c.mu.Unlock()

	return nil
}

// Stop はライブフィードを停止する
// ローカルのフィード参照を先にクリアしてからサーバーに通知する。
// サーバー側の停止失敗は返されるが、再生状態には巻き戻さない
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if !c.playing {
		c.mu.Unlock()
		return nil // 既に停止済み
	}
	c.busy = true

	// クライアントから見た停止は即時
	c.playing = false
	c.feedURL = ""
	c.mu.Unlock()

	// サーバー側の停止はベストエフォート
	err := c.backend.StopVideo(ctx)

	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("ライブフィードの停止通知に失敗: %w", err)
	}
	return nil
}

// Toggle は再生状態に応じて開始・停止を切り替える
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	playing := c.playing
	c.mu.Unlock()

	if playing {
		return c.Stop(ctx)
	}
	return c.Start(ctx)
}

// Shutdown はビュー破棄時の暗黙停止をちょうど1回発火する
// サーバーの応答を待たずに戻る
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		wasPlaying := c.playing
		c.shutdown = true
		c.playing = false
		c.feedURL = ""
		c.busy = false
		c.mu.Unlock()

		if wasPlaying {
			// fire-and-forget。結果は破棄される
			go func() {
				_ = c.backend.StopVideo(context.Background())
			}()
		}
	})
}

// Playing は再生中かどうかを返す
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// FeedURL は現在のストリームURLを返す（停止中は空文字列）
func (c *Controller) FeedURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feedURL
}

// Token は現在のキャッシュバスタートークンを返す
func (c *Controller) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetTokenFunc はテスト用にトークン生成関数を差し替える
func (c *Controller) SetTokenFunc(fn func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenFn = fn
}
