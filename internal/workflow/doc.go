// Package workflow キャプチャ・検証・確認・コミットのワークフローを駆動する
//
// # 責務
// - 登録・認証ワークフロー1回分の状態遷移管理
// - デバイス選択からライブプレビュー、キャプチャまでの進行
// - バックエンド抽出結果に応じた確認・手動入力への振り分け
// - ユーザー確認後のコミットと重複コミットの防止
// - キャンセル時のハードウェア即時解放と遅延結果の破棄
//
// # 仕様
// - 状態は単一のタグ付きPhaseで表現する。複数のbooleanフラグによる
//   暗黙状態の組み合わせは持たない
// - 遷移は直列化される。非同期ステップが未完了の間、新しい操作は
//   ErrBusy で拒否される（明示的なbusyフラグによる）
// - キャンセルは世代カウンターを進め、進行中のネットワーク呼び出しの
//   結果は到着時に破棄される。ストリーム解放は同期的に行われる
// - 身分証フローは抽出失敗でも空フィールドで確認へ進む。車両フローは
//   バックエンドが明示した場合のみ手動入力へ遷移する。この非対称は
//   仕様であり、勝手に統一しないこと
package workflow
