package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"monban/internal/config"
	"monban/internal/device"
	"monban/internal/livefeed"
	"monban/internal/notify"
	"monban/internal/recog"
	"monban/internal/records"
	"monban/internal/workflow"

	"github.com/gin-gonic/gin"
)

// Server はHTTPサーバーと各コンポーネントを管理する構造体
type Server struct {
	config     *config.Config
	engine     *gin.Engine
	httpServer *http.Server

	devices *device.Manager
	client  *recog.Client
	feed    *livefeed.Controller
	ledger  *notify.Ledger
	poller  *notify.Poller

	// 出席一覧の検索・ページング・インライン編集状態
	attendance *records.List

	// アクティブなワークフローインスタンス
	wfMu      sync.Mutex
	workflows map[string]*workflow.Machine

	// 未配送のアラートと現在ビュー
	alertMu     sync.Mutex
	alerts      []notify.Alert
	currentView string
}

// New は本番用の依存関係を組み立てて新しいServerを作成する
func New(cfg *config.Config) *Server {
	client := recog.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)

	devices := device.NewManager(
		device.NewLinuxDiscovery(),
		device.NewV4L2Opener(cfg.Device.CaptureQuality),
		cfg.Device.SwitchSettle,
		cfg.Device.CaptureQuality,
	)

	return NewWithComponents(cfg, client, devices)
}

// NewWithComponents は依存関係を注入して新しいServerを作成する
// テストではモックのDiscovery/Openerを組み込んだManagerを渡す
func NewWithComponents(cfg *config.Config, client *recog.Client, devices *device.Manager) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		config:     cfg,
		engine:     engine,
		devices:    devices,
		client:     client,
		feed:       livefeed.NewController(client, cfg.LiveFeed.StartSettle),
		ledger:     notify.NewLedger(),
		attendance: records.NewList(10),
		workflows:  make(map[string]*workflow.Machine),
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	s.poller = notify.NewPoller(
		client,
		s.ledger,
		cfg.Notify.Interval,
		cfg.Notify.TargetView,
		s.CurrentView,
		s.pushAlert,
	)

	s.setupRoutes()

	return s
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// 通知ポーリングを開始
	s.poller.Start(ctx)

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Printf("HTTPサーバーを起動しています: %s", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
// ポーリング停止・フィード停止・デバイス解放を行ってからHTTPを閉じる
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	// 通知ポーリングを停止（タイマーはリークしない）
	s.poller.Stop()

	// ライブフィードの暗黙停止（サーバー応答は待たない）
	s.feed.Shutdown()

	// アクティブなワークフローを破棄し、ハードウェアを解放する
	s.wfMu.Lock()
	for id, machine := range s.workflows {
		machine.Cancel()
		delete(s.workflows, id)
	}
	s.wfMu.Unlock()
	s.devices.CloseCurrent()

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}

// Engine はテスト用にginエンジンを返す
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// CurrentView は報告された現在ビューを返す
func (s *Server) CurrentView() string {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	return s.currentView
}

// pushAlert は未配送アラートを追加する
func (s *Server) pushAlert(alert notify.Alert) {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	s.alerts = append(s.alerts, alert)
}

// drainAlerts は未配送アラートを取り出してクリアする
func (s *Server) drainAlerts() []notify.Alert {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()

	alerts := s.alerts
	s.alerts = nil
	return alerts
}

// getWorkflow はIDでワークフローを取得する
func (s *Server) getWorkflow(id string) (*workflow.Machine, bool) {
	s.wfMu.Lock()
	defer s.wfMu.Unlock()

	machine, exists := s.workflows[id]
	return machine, exists
}

// putWorkflow はワークフローを登録する
func (s *Server) putWorkflow(machine *workflow.Machine) {
	s.wfMu.Lock()
	defer s.wfMu.Unlock()
	s.workflows[machine.ID()] = machine
}

// removeWorkflow はワークフローを登録解除する
func (s *Server) removeWorkflow(id string) {
	s.wfMu.Lock()
	defer s.wfMu.Unlock()
	delete(s.workflows, id)
}

// workflowCount はアクティブなワークフロー数を返す
func (s *Server) workflowCount() int {
	s.wfMu.Lock()
	defer s.wfMu.Unlock()
	return len(s.workflows)
}
