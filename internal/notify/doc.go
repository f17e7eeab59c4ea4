// Package notify 検知イベントのポーリングと新着通知を担う
//
// # 責務
// - 一定間隔での最新イベント一覧の取得
// - 台帳（最後に観測したイベント識別子）による新着判定
// - 新着イベントごとにちょうど1回の通知発火
// - 該当ビュー表示中の通知抑制
//
// # 仕様
// - 台帳はプロセス全体で共有される状態であり、アプリケーション開始時に
//   空で初期化され、成功したポーリングごとに無条件で更新される
// - 通知は台帳に前回値がある場合（初回ポーリング以外）にのみ発火する
// - 取得失敗は台帳を変更せず、ユーザーにも通知しない。次のティックで
//   再試行される
// - 取得はループ内で同期的に行われ、パイプライン化されない
// - Stopはタイマーを決定的に解放する
package notify
