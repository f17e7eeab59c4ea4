// Package livefeed サーバー描画の連続ビデオストリームの開始・停止を担う
//
// # 責務
// - バックエンドへのカメラ準備依頼とストリーム消費の開始
// - 停止時のローカル状態先行クリアとベストエフォートのサーバー停止通知
// - 開始・停止の単一進行保証（同時に1操作のみ）
// - ビュー破棄時の暗黙停止（ちょうど1回、サーバー応答を待たない）
//
// # 仕様
// - 開始は準備依頼 → 有界の待機 → 新しいキャッシュバスタートークンで
//   ストリームURLを確定、の順に行う。再開されたフィードが停止前の
//   キャッシュ済みフレームを受け取ることはない
// - 停止はローカルのフィード参照を先にクリアする。サーバー側の停止は
//   ベストエフォートであり、その失敗が「再生中」への巻き戻しを
//   引き起こすことはない
package livefeed
