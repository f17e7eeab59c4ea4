// Package records 取得済みレコード集合の検索・ページングを担う
//
// # 責務
// - 部分文字列によるレコードの絞り込み
// - クライアントサイドのページネーション
// - インライン編集のステージングと反映
//
// # 仕様
// - 検索は大文字小文字を区別せず、全フィールドを対象にする
// - ページ番号は常に有効範囲にクランプされる
// - レコード集合や検索条件の変更でページは先頭に戻る
package records
