package notify

import "sync"

// Ledger は最後に観測したリモートイベントの識別子を保持する
// ビューをまたいで生存する必要があるため、プロセススコープで
// ひとつだけ作成して共有する
type Ledger struct {
	mu     sync.Mutex
	lastID string
	primed bool
}

// NewLedger は空の台帳を作成する
func NewLedger() *Ledger {
	return &Ledger{}
}

// Observe は取得した最新イベントの識別子を記録する
// 前回値が存在し、かつ識別子が変化した場合にtrueを返す（通知候補）。
// 台帳は通知の有無にかかわらず無条件で更新される
func (l *Ledger) Observe(newestID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	novel := l.primed && newestID != l.lastID

	l.lastID = newestID
	l.primed = true

	return novel
}

// LastID は記録済みの識別子を返す（未観測なら空文字列）
func (l *Ledger) LastID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastID
}

// Primed は一度でも観測に成功したかを返す
func (l *Ledger) Primed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.primed
}
