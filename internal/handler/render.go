package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/hitoshi/gameshelf/internal/middleware"
	"github.com/hitoshi/gameshelf/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// ビュー名。templates/<名前>.html に対応する。
const (
	viewIndex       = "index"
	viewGames       = "games"
	viewGame        = "game"
	viewPlatforms   = "platforms"
	viewPlatform    = "platform"
	viewBasket      = "basket"
	viewAdded       = "added"
	viewPleaseLogin = "please_login"
	viewNotFound    = "not_found"
	viewError       = "error"
)

var viewNames = []string{
	viewIndex, viewGames, viewGame, viewPlatforms, viewPlatform,
	viewBasket, viewAdded, viewPleaseLogin, viewNotFound, viewError,
}

// StoreErrorRecorder はストア障害の発生を記録する。
type StoreErrorRecorder interface {
	RecordStoreError()
}

// pageData は全ビュー共通のテンプレートデータ。
type pageData struct {
	Title     string
	Identity  *model.Identity
	CSRFField string
	CSRFToken string
	Content   any
}

// Renderer は埋め込みテンプレートからHTMLビューを描画する。
type Renderer struct {
	views       map[string]*template.Template
	storeErrors StoreErrorRecorder
}

// NewRenderer は全ビューのテンプレートを解析してRendererを生成する。
// storeErrorsがnilの場合はストア障害を記録しない。
func NewRenderer(storeErrors StoreErrorRecorder) (*Renderer, error) {
	funcs := template.FuncMap{
		// カタログ層でサニタイズ済みのHTMLのみを渡すこと
		"safeHTML": func(s string) template.HTML { return template.HTML(s) },
	}

	views := make(map[string]*template.Template, len(viewNames))
	for _, name := range viewNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, errors.Wrapf(err, "parse template %s", name)
		}
		views[name] = tmpl
	}

	return &Renderer{views: views, storeErrors: storeErrors}, nil
}

// Render はビューをstatusで描画する。
// 途中で失敗した場合に不完全なHTMLを返さないよう、バッファに描画してから書き込む。
func (rn *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, view, title string, content any) {
	rn.renderAs(w, r, status, view, title, middleware.IdentityFromContext(r.Context()), content)
}

// renderAs はIdentityを明示してビューを描画する。
// ログイン直後のようにコンテキストにまだIdentityがない場合に使う。
func (rn *Renderer) renderAs(w http.ResponseWriter, r *http.Request, status int, view, title string, identity *model.Identity, content any) {
	tmpl, ok := rn.views[view]
	if !ok {
		slog.Error("unknown view", slog.String("view", view))
		middleware.WriteInternalServerError(w)
		return
	}

	data := pageData{
		Title:     title,
		Identity:  identity,
		CSRFField: middleware.CSRFFieldName,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Content:   content,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render view",
			slog.String("view", view),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// NotFound は未定義ルートの404画面を描画する。
func (rn *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rn.Render(w, r, http.StatusNotFound, viewNotFound, "見つかりません", &model.AppError{
		Code:    "NOT_FOUND",
		Message: "ページが見つかりません。",
		Action:  "URLを確認してください。",
	})
}

// handleServiceError はサービス層のエラーを適切な画面またはリダイレクトに変換する。
// 内部の詳細は画面に出さずログにのみ記録する。
func (rn *Renderer) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrUnauthenticated):
		http.Redirect(w, r, loginPromptPath, http.StatusSeeOther)
		return
	case errors.Is(err, model.ErrUpstreamFailure):
		slog.Warn("identity provider request failed", slog.String("error", err.Error()))
		http.Redirect(w, r, authFailedPath, http.StatusSeeOther)
		return
	case errors.Is(err, model.ErrStoreUnavailable):
		slog.Error("store unavailable",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if rn.storeErrors != nil {
			rn.storeErrors.RecordStoreError()
		}
		rn.Render(w, r, http.StatusServiceUnavailable, viewError, "エラー", model.NewStoreUnavailableError())
		return
	}

	var appErr *model.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case model.ErrCodeGameNotFound, model.ErrCodePlatformNotFound:
			rn.Render(w, r, http.StatusNotFound, viewNotFound, "見つかりません", appErr)
		case model.ErrCodeInvalidPage, model.ErrCodeInvalidRequest:
			rn.Render(w, r, http.StatusBadRequest, viewError, "エラー", appErr)
		case model.ErrCodeForbidden:
			rn.Render(w, r, http.StatusForbidden, viewError, "エラー", appErr)
		default:
			rn.Render(w, r, http.StatusInternalServerError, viewError, "エラー", model.NewInternalError())
		}
		return
	}

	slog.Error("unexpected service error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	rn.Render(w, r, http.StatusInternalServerError, viewError, "エラー", model.NewInternalError())
}
