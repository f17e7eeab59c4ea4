package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Device   DeviceConfig   `yaml:"device"`
	LiveFeed LiveFeedConfig `yaml:"live_feed"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// BackendConfig は認識バックエンドへの接続設定
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"` // 認識バックエンドのベースURL
	Timeout time.Duration `yaml:"timeout"`  // リクエストタイムアウト
}

// DeviceConfig はキャプチャデバイス関連の設定
type DeviceConfig struct {
	// デバイス切り替え時の待機時間。直前のクローズがドライバー側で
	// 完了するのを待ってから次のオープンを発行する
	SwitchSettle time.Duration `yaml:"switch_settle"`

	// キャプチャ時のJPEGエンコード品質 (0.0-1.0)
	CaptureQuality float64 `yaml:"capture_quality"`
}

// LiveFeedConfig はライブフィードの設定
type LiveFeedConfig struct {
	// バックエンドにカメラ準備を依頼してからストリーム消費を
	// 開始するまでの待機時間
	StartSettle time.Duration `yaml:"start_settle"`
}

// NotifyConfig は検知イベント通知ポーリングの設定
type NotifyConfig struct {
	Interval   time.Duration `yaml:"interval"`    // ポーリング間隔
	TargetView string        `yaml:"target_view"` // 通知の遷移先ビュー
}

// Load は設定を読み込む
// 環境変数からデフォルト値を組み立てる
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsIntOrDefault("PORT", 8080),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Backend: BackendConfig{
			BaseURL: getEnvOrDefault("BACKEND_URL", "http://127.0.0.1:5000"),
			Timeout: 30 * time.Second,
		},
		Device: DeviceConfig{
			SwitchSettle:   time.Duration(getEnvAsIntOrDefault("DEVICE_SWITCH_SETTLE_MS", 200)) * time.Millisecond,
			CaptureQuality: 0.95,
		},
		LiveFeed: LiveFeedConfig{
			StartSettle: time.Duration(getEnvAsIntOrDefault("LIVEFEED_START_SETTLE_MS", 500)) * time.Millisecond,
		},
		Notify: NotifyConfig{
			Interval:   time.Duration(getEnvAsIntOrDefault("NOTIFY_INTERVAL_MS", 1000)) * time.Millisecond,
			TargetView: "/human-detection",
		},
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// LoadFile は設定ファイルを読み込み、環境変数由来のデフォルト設定に上書きする
// ファイルが存在しない場合はデフォルト設定をそのまま返す
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}

	// 上書き後に再検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// バックエンド設定の検証
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("バックエンドURLが設定されていません")
	}

	// デバイス設定の検証
	if c.Device.SwitchSettle < 0 {
		return fmt.Errorf("無効なデバイス切り替え待機時間: %v", c.Device.SwitchSettle)
	}
	if c.Device.CaptureQuality <= 0 || c.Device.CaptureQuality > 1.0 {
		return fmt.Errorf("無効なキャプチャ品質: %f", c.Device.CaptureQuality)
	}

	// 通知設定の検証
	if c.Notify.Interval <= 0 {
		return fmt.Errorf("無効なポーリング間隔: %v", c.Notify.Interval)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
