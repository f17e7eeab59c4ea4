// Package recog 認識バックエンドへのHTTPクライアントを提供する
//
// # 責務
// - 身分証OCR抽出と顔登録・認証エンドポイントの呼び出し
// - 車両ナンバープレート抽出と車両登録・認証エンドポイントの呼び出し
// - ライブフィードの開始・停止とストリームURLの組み立て
// - 検知イベント画像の取得・既読化・削除
//
// # 仕様
// - 画像はすべてdata-URIプレフィックスなしのbase64 JPEGで送受信する
// - data:image/jpeg;base64, プレフィックスの付与・除去はローカル描画の
//   境界でのみ行う（DataURI / StripDataURI）
// - HTTPエラー（非2xx）はエラーとして返す
// - レスポンスの success:false はデータであってエラーではない
package recog
