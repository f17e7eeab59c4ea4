package notify

import (
	"context"
	"sync"
	"time"

	"monban/internal/recog"
)

// Source は最新イベント一覧の取得を抽象化する
// recog.Client がこれを満たす
type Source interface {
	DetectionImages(ctx context.Context) ([]recog.DetectionImage, error)
}

// Alert は新着イベントの通知を表す
// 破棄可能であり、対象ビューへの遷移アクションを運ぶ
type Alert struct {
	EventID    string `json:"event_id"`
	TargetView string `json:"target_view"`
	Message    string `json:"message"`
}

// Poller は一定間隔で最新イベントを取得し、新着を通知する
type Poller struct {
	source Source
	ledger *Ledger

	interval   time.Duration
	targetView string

	// currentView は現在表示中のビューを返す
	// 対象ビュー表示中の通知は抑制される
	currentView func() string

	// sink は通知の届け先
	sink func(Alert)

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPoller は新しいPollerを作成する
func NewPoller(source Source, ledger *Ledger, interval time.Duration, targetView string, currentView func() string, sink func(Alert)) *Poller {
	return &Poller{
		source:      source,
		ledger:      ledger,
		interval:    interval,
		targetView:  targetView,
		currentView: currentView,
		sink:        sink,
		stopCh:      make(chan struct{}),
	}
}

// Start はポーリングループを開始する
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop はポーリングを決定的に停止する。タイマーはリークしない
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}

// run はポーリングループ本体
// 取得はループ内で同期的に行われるため、ポーリングN+1がNの処理完了前に
// 始まることはない
func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	// 初回は即座にポーリングして台帳を初期化する
	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce は1回分の取得・判定・通知を行う
func (p *Poller) pollOnce(ctx context.Context) {
	images, err := p.source.DetectionImages(ctx)
	if err != nil {
		// 一時的な取得失敗は台帳を変更せず、通知もしない
		// 次のティックで再試行される
		return
	}

	if len(images) == 0 {
		return
	}

	newest := images[0]

	// 台帳の更新は通知の有無にかかわらず行われる
	novel := p.ledger.Observe(newest.Filename)
	if !novel {
		return
	}

	// 該当ビューを表示中なら通知自体を抑制する
	if p.currentView != nil && p.currentView() == p.targetView {
		return
	}

	p.sink(Alert{
		EventID:    newest.Filename,
		TargetView: p.targetView,
		Message:    "新しい人物検知イベントがあります",
	})
}
