package records

import (
	"fmt"
	"strings"
	"sync"

	"monban/internal/recog"
)

// Record は表示用レコード1件を表す
type Record map[string]string

// List は取得済みレコード集合の検索・ページング状態を管理する
type List struct {
	mu sync.Mutex

	all     []Record
	query   string
	page    int
	perPage int

	// インライン編集用
	editIndex int
	draft     Record
}

// NewList は新しいListを作成する
func NewList(perPage int) *List {
	if perPage < 1 {
		perPage = 10
	}
	return &List{
		perPage:   perPage,
		page:      1,
		editIndex: -1,
	}
}

// SetRecords はレコード集合を差し替え、ページを先頭に戻す
func (l *List) SetRecords(records []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.all = make([]Record, len(records))
	copy(l.all, records)
	l.page = 1
	l.editIndex = -1
	l.draft = nil
}

// SetPerPage は1ページあたりの件数を変更し、ページを先頭に戻す
func (l *List) SetPerPage(perPage int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if perPage < 1 {
		return
	}
	l.perPage = perPage
	l.page = 1
}

// SetQuery は検索条件を設定し、ページを先頭に戻す
func (l *List) SetQuery(query string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.query = query
	l.page = 1
}

// filteredLocked は検索条件に一致するレコードを返す（ロック保持前提）
func (l *List) filteredLocked() []Record {
	if l.query == "" {
		return l.all
	}

	needle := strings.ToLower(l.query)
	var matched []Record
	for _, record := range l.all {
		for _, value := range record {
			if strings.Contains(strings.ToLower(value), needle) {
				matched = append(matched, record)
				break
			}
		}
	}
	return matched
}

// TotalPages は現在の絞り込み結果の総ページ数を返す（最低1）
func (l *List) TotalPages() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.totalPagesLocked()
}

func (l *List) totalPagesLocked() int {
	total := len(l.filteredLocked())
	if total == 0 {
		return 1
	}
	return (total + l.perPage - 1) / l.perPage
}

// SetPage はページ番号を設定する。範囲外は有効範囲にクランプされる
func (l *List) SetPage(page int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if max := l.totalPagesLocked(); page > max {
		page = max
	}
	l.page = page
}

// Page は現在のページ番号を返す
func (l *List) Page() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page
}

// PageRecords は現在のページに表示するレコードを返す
func (l *List) PageRecords() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	filtered := l.filteredLocked()

	start := (l.page - 1) * l.perPage
	if start >= len(filtered) {
		return nil
	}

	end := start + l.perPage
	if end > len(filtered) {
		end = len(filtered)
	}

	result := make([]Record, end-start)
	copy(result, filtered[start:end])
	return result
}

// StageEdit は指定レコードの編集を開始し、ドラフトを作成する
func (l *List) StageEdit(index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.all) {
		return fmt.Errorf("レコードが見つかりません: %d", index)
	}

	l.editIndex = index
	l.draft = make(Record, len(l.all[index]))
	for k, v := range l.all[index] {
		l.draft[k] = v
	}
	return nil
}

// SetDraftField は編集中ドラフトのフィールドを更新する
func (l *List) SetDraftField(key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.draft == nil {
		return fmt.Errorf("編集中のレコードがありません")
	}
	l.draft[key] = value
	return nil
}

// ApplyEdit はドラフトを元のレコードに反映する
func (l *List) ApplyEdit() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.draft == nil || l.editIndex < 0 {
		return fmt.Errorf("編集中のレコードがありません")
	}

	l.all[l.editIndex] = l.draft
	l.editIndex = -1
	l.draft = nil
	return nil
}

// Editing は編集中ドラフトが存在するかどうかを返す
func (l *List) Editing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.draft != nil
}

// CancelEdit はドラフトを破棄する
func (l *List) CancelEdit() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.editIndex = -1
	l.draft = nil
}

// FromAttendance は出席記録をレコード集合に変換する
func FromAttendance(entries []recog.AttendanceEntry) []Record {
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, Record{
			"name": e.Name,
			"id":   e.ID,
			"time": e.Time,
		})
	}
	return records
}

// FromDetections は検知イベント画像をレコード集合に変換する
func FromDetections(images []recog.DetectionImage) []Record {
	records := make([]Record, 0, len(images))
	for _, img := range images {
		read := "unread"
		if img.Read {
			read = "read"
		}
		records = append(records, Record{
			"id":        fmt.Sprintf("%d", img.ID),
			"filename":  img.Filename,
			"url":       img.URL,
			"timestamp": img.Timestamp,
			"status":    read,
		})
	}
	return records
}
