package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/gameshelf/internal/model"
	"github.com/hitoshi/gameshelf/internal/repository"
	"github.com/hitoshi/gameshelf/internal/security"
)

// DefaultImportMaxSize はインポートするJSONの最大サイズ（5MiB）。
const DefaultImportMaxSize int64 = 5 * 1024 * 1024

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// importRecord はインポートJSONの1レコード。
type importRecord struct {
	Name     string         `json:"name" validate:"required,max=255"`
	Slug     string         `json:"slug" validate:"required,max=255,slug"`
	Summary  string         `json:"summary"`
	URL      string         `json:"url" validate:"omitempty,url"`
	Platform model.Platform `json:"platform"`
}

// ImportResult はインポート結果の件数。
type ImportResult struct {
	Imported int // 新規登録
	Updated  int // 既存slugの更新
	Skipped  int // 検証エラー
}

// Importer はJSON形式のゲーム一覧をカタログに登録する。
type Importer struct {
	games    repository.GameRepository
	client   *http.Client
	guard    security.SSRFGuard
	validate *validator.Validate
	maxSize  int64
}

// newRecordValidator はslugタグを登録したバリデーターを返す。
// 登録に失敗するのはプログラムの誤りなのでpanicする。
func newRecordValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(errors.Wrap(err, "register slug validation"))
	}
	return v
}

// NewImporter はImporterを生成する。
// clientはURLからの取得に使用する。本番ではSSRFGuard.NewSafeClientで生成したものを渡す。
// guardがnilの場合はURLの事前検証を行わない。
func NewImporter(games repository.GameRepository, client *http.Client, guard security.SSRFGuard, maxSize int64) *Importer {
	if maxSize <= 0 {
		maxSize = DefaultImportMaxSize
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Importer{
		games:    games,
		client:   client,
		guard:    guard,
		validate: newRecordValidator(),
		maxSize:  maxSize,
	}
}

// Import はsource（ローカルパスまたはhttp(s) URL）からゲーム一覧を読み込み、slugをキーに登録する。
// 検証に失敗したレコードはスキップし、ストアのエラーで中断する。
func (im *Importer) Import(ctx context.Context, source string) (*ImportResult, error) {
	data, err := im.read(ctx, source)
	if err != nil {
		return nil, err
	}

	var records []importRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "decode catalog json")
	}

	result := &ImportResult{}
	for i := range records {
		rec := normalizeRecord(records[i])
		if err := im.validate.Struct(rec); err != nil {
			slog.Warn("skipping invalid catalog record",
				slog.Int("index", i),
				slog.String("slug", rec.Slug),
				slog.String("error", err.Error()),
			)
			result.Skipped++
			continue
		}

		game := &model.Game{
			Name:     rec.Name,
			Slug:     rec.Slug,
			Summary:  rec.Summary,
			URL:      rec.URL,
			Platform: rec.Platform,
		}
		inserted, err := im.games.Upsert(ctx, game)
		if err != nil {
			return result, errors.Wrapf(err, "upsert game %q", rec.Slug)
		}
		if inserted {
			result.Imported++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// read はsourceの内容をmaxSizeまで読み込む。
func (im *Importer) read(ctx context.Context, source string) ([]byte, error) {
	lower := strings.ToLower(source)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return im.readFile(source)
	}

	if im.guard != nil {
		if err := im.guard.ValidateURL(source); err != nil {
			return nil, errors.Wrap(err, "validate import url")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create import request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch catalog")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch catalog: unexpected status %d", resp.StatusCode)
	}
	return im.readLimited(resp.Body)
}

func (im *Importer) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog file")
	}
	defer f.Close()
	return im.readLimited(f)
}

func (im *Importer) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, im.maxSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	if int64(len(data)) > im.maxSize {
		return nil, errors.Errorf("catalog exceeds %d bytes", im.maxSize)
	}
	return data, nil
}

// normalizeRecord は前後の空白を除去し、プラットフォームslugが未指定なら名前から導出する。
func normalizeRecord(rec importRecord) importRecord {
	rec.Name = strings.TrimSpace(rec.Name)
	rec.Slug = strings.TrimSpace(rec.Slug)
	rec.URL = strings.TrimSpace(rec.URL)
	rec.Platform.Name = strings.TrimSpace(rec.Platform.Name)
	rec.Platform.Slug = strings.TrimSpace(rec.Platform.Slug)
	if rec.Platform.Slug == "" {
		rec.Platform.Slug = Slugify(rec.Platform.Name)
	}
	return rec
}

// Slugify は名前を小文字英数字とハイフンのみのslugに変換する。
// "Nintendo Switch" は "nintendo-switch" になる。
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}
