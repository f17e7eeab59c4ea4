package server

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed all:dist
var embedFS embed.FS

// GetStaticFS は静的ファイルのファイルシステムを返す
func GetStaticFS() http.FileSystem {
	// dist のサブディレクトリを取得
	staticFS, err := fs.Sub(embedFS, "dist")
	if err != nil {
		panic(err)
	}
	return http.FS(staticFS)
}

// getIndexHTML は埋め込まれたindex.htmlの内容を返す
func getIndexHTML() ([]byte, error) {
	return embedFS.ReadFile("dist/index.html")
}

// handleIndex はトップページ（操作パネル）の配信エンドポイントの実装
func (s *Server) handleIndex(c *gin.Context) {
	html, err := getIndexHTML()
	if err != nil {
		c.String(http.StatusInternalServerError, "index.htmlの読み込みに失敗しました")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}
