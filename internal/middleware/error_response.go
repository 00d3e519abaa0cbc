package middleware

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gameshelf/internal/model"
)

// errorPage はミドルウェアが直接返すエラー画面。
// ハンドラー側のビューを経由しないため最小限のHTMLとする。
var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="ja">
<head><meta charset="utf-8"><title>エラー</title></head>
<body>
<h1>{{.Message}}</h1>
<p>{{.Action}}</p>
<p><a href="/">トップへ戻る</a></p>
</body>
</html>
`))

// WriteErrorPage は統一フォーマットのエラー画面をstatusCodeで書き込む。
func WriteErrorPage(w http.ResponseWriter, statusCode int, appErr *model.AppError) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := errorPage.Execute(w, appErr); err != nil {
		slog.Error("failed to render error page", slog.String("error", err.Error()))
	}
}

// WriteInternalServerError は内部エラー画面を書き込む。
// 詳細はログのみに記録し、画面には一般的なメッセージを出す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorPage(w, http.StatusInternalServerError, model.NewInternalError())
}
