package recog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client は認識バックエンドへのHTTPクライアント
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient は新しいClientを作成する
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ExtractID は身分証画像からOCRで氏名と識別子を抽出する
func (c *Client) ExtractID(ctx context.Context, idType, idImage string) (*ExtractIDResult, error) {
	var result ExtractIDResult
	req := ExtractIDRequest{IDType: idType, IDImage: StripDataURI(idImage)}
	if err := c.postJSON(ctx, "/extract-id", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RegisterFace は顔登録をコミットする
func (c *Client) RegisterFace(ctx context.Context, idType, name, identifier string) (*RegisterFaceResult, error) {
	var result RegisterFaceResult
	req := RegisterFaceRequest{IDType: idType, Name: name, Identifier: identifier}
	if err := c.postJSON(ctx, "/register-face", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Authenticate は顔認証をコミットする
func (c *Client) Authenticate(ctx context.Context, idType, name, identifier string) (*AuthenticateResult, error) {
	var result AuthenticateResult
	req := AuthenticateRequest{IDType: idType, Name: name, Identifier: identifier}
	if err := c.postJSON(ctx, "/authenticate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TodayAttendance は当日の出席一覧を取得する
func (c *Client) TodayAttendance(ctx context.Context) (*AttendanceResult, error) {
	var result AttendanceResult
	if err := c.getJSON(ctx, "/todayattendance", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartVideo はバックエンドにライブフィード用カメラの準備を依頼する
func (c *Client) StartVideo(ctx context.Context) error {
	return c.postJSON(ctx, "/start_video", nil, nil)
}

// StopVideo はバックエンドにライブフィードの停止を依頼する
func (c *Client) StopVideo(ctx context.Context) error {
	return c.postJSON(ctx, "/stop_video", nil, nil)
}

// VideoFeedURL はキャッシュバスタートークン付きのストリームURLを返す
// 再開されたフィードがキャッシュ済みフレームを受け取らないよう、
// トークンは開始ごとに新しい値を使うこと
func (c *Client) VideoFeedURL(token string) string {
	return fmt.Sprintf("%s/video_feed?timestamp=%s", c.baseURL, token)
}

// OpenVideoFeed はライブフィードのストリームを開く
// 呼び出し側がBodyをクローズする責任を持つ
func (c *Client) OpenVideoFeed(ctx context.Context, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.VideoFeedURL(token), nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ライブフィードの接続に失敗: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("ライブフィードの接続に失敗: ステータス %d", resp.StatusCode)
	}

	return resp, nil
}

// ProcessVehicleImage は車両画像をmultipartで送信しプレート抽出結果を得る
func (c *Client) ProcessVehicleImage(ctx context.Context, jpegData []byte) (*PlateResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", "vehicle.jpg")
	if err != nil {
		return nil, fmt.Errorf("multipartの作成に失敗: %w", err)
	}
	if _, err := part.Write(jpegData); err != nil {
		return nil, fmt.Errorf("画像データの書き込みに失敗: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("multipartのクローズに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process_vehicle_image", &body)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result PlateResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RegisterVehicle は車両登録をコミットする
func (c *Client) RegisterVehicle(ctx context.Context, reg VehicleRegistration) (*SimpleResult, error) {
	// ワイヤー上の画像はプレフィックスなしのbase64
	reg.FullImage = StripDataURI(reg.FullImage)
	reg.PlateImage = StripDataURI(reg.PlateImage)

	var result SimpleResult
	if err := c.postJSON(ctx, "/register_vehicle", reg, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AuthenticateVehicle はナンバープレートで車両認証をコミットする
func (c *Client) AuthenticateVehicle(ctx context.Context, plateNumber string) (*VehicleAuthResult, error) {
	req := map[string]string{"plate_number": plateNumber}

	var result VehicleAuthResult
	if err := c.postJSON(ctx, "/authenticate_vehicle", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DetectionImages は検知イベント画像の全一覧を取得する
// 一覧は新しい順に並んでいる
func (c *Client) DetectionImages(ctx context.Context) ([]DetectionImage, error) {
	var result []DetectionImage
	if err := c.getJSON(ctx, "/detection_images", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UnreadDetectionImages は未読の検知イベント画像一覧を取得する
func (c *Client) UnreadDetectionImages(ctx context.Context) ([]DetectionImage, error) {
	var result []DetectionImage
	if err := c.getJSON(ctx, "/unread_detection_images", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkRead は検知イベント画像を既読にする
func (c *Client) MarkRead(ctx context.Context, id int) error {
	return c.postJSON(ctx, fmt.Sprintf("/mark_read/%d", id), nil, nil)
}

// DeleteDetectionImage は検知イベント画像を削除する
func (c *Client) DeleteDetectionImage(ctx context.Context, id int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/delete_detection_image/%d", c.baseURL, id), nil)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	return c.do(req, nil)
}

// postJSON はJSONボディをPOSTしレスポンスをデコードする
func (c *Client) postJSON(ctx context.Context, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("リクエストのエンコードに失敗: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

// getJSON はGETしてレスポンスをデコードする
func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	return c.do(req, result)
}

// do はリクエストを実行し、2xx以外はエラーとして報告する
func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("バックエンドへのリクエストに失敗: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("バックエンドがエラーを返しました: %s %s: ステータス %d",
			req.Method, req.URL.Path, resp.StatusCode)
	}

	if result == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("レスポンスの解析に失敗: %w", err)
	}

	return nil
}
