// Package server は、組み込みブラウザUI向けのHTTP APIを提供します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// ワークフロー・ライブフィード・通知の各コンポーネントの束ね、
// 静的ファイルの配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - ワークフロー操作エンドポイントの提供
//   - ライブフィードのプロキシ配信
//   - 通知アラートの受け渡しと現在ビューの追跡
//   - 静的ファイル（HTML/CSS/JS）の配信
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - グレースフルシャットダウンに対応
//   - シャットダウン時にポーリング停止・フィード停止・デバイス解放を行う
package server
