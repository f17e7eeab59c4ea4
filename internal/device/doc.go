// Package device キャプチャデバイスのセッション管理を担う
//
// # 責務
// - キャプチャデバイスの列挙とデフォルト選択
// - メディアストリームの排他的なライフサイクル管理
// - ライブセッションからの単発フレームキャプチャ
// - デバイス切り替え時のクローズ先行保証
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - ワークフローがフレームを取得するためにデバイスを開きたい
// - 同時に複数のストリームが開かないことを保証したい
// - 接続されたカメラの一覧からデフォルトを選びたい
//
// # 仕様
// - Discovery: /dev/video* デバイスの検出・実名取得・権限プローブ
// - Manager: 常に最大1つのライブセッションを保持する排他管理
// - Opener: 実ハードウェアアクセスの抽象化（テスト時はモック差し替え）
// - オープンは必ず直前のクローズ完了後に発行される
// - クローズは冪等。クローズ済みセッションへの再クローズはエラーにしない
//
// # 前提要件
//   - v4l-utils: カメラ名の取得とデバイス制御に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: フレームキャプチャに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package device
