package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/user/papertiger/internal/apperr"
	"github.com/user/papertiger/internal/model"
	"github.com/user/papertiger/internal/repository"
	"github.com/user/papertiger/internal/utils"
)

const (
	minFeatureMinutes = 45
	maxOverviewLength = 1000
)

// DefaultGenres 默认导入的类型
var DefaultGenres = []string{"Horror", "Comedy", "Drama", "Sci-Fi", "Action", "Romance", "Western", "Thriller"}

var reNonMovie = regexp.MustCompile(`\b(trailers?|interviews?|episodes?|tv|pilot|behind the scenes)\b`)

// ImportOptions 导入参数
type ImportOptions struct {
	Genres   []string
	MaxPages int
	PageSize int
	Pause    time.Duration // 每页之间的间隔，避免压垮接口
}

// ImportReport 导入结果
type ImportReport struct {
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
	PerGenre map[string]int `json:"per_genre"`
}

// Importer 从 Internet Archive 导入电影
type Importer struct {
	repos   *repository.Repositories
	client  *ArchiveClient
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewImporter 创建导入器
func NewImporter(repos *repository.Repositories, client *ArchiveClient) *Importer {
	return &Importer{repos: repos, client: client}
}

func (o *ImportOptions) withDefaults() {
	if len(o.Genres) == 0 {
		o.Genres = DefaultGenres
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 20
	}
	if o.PageSize <= 0 {
		o.PageSize = 50
	}
}

// Start 后台导入，同一时间只允许一个任务
func (im *Importer) Start(ctx context.Context, opts ImportOptions) error {
	if !im.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: import already running", apperr.ErrConflict)
	}
	im.wg.Add(1)
	go func() {
		defer im.wg.Done()
		defer im.running.Store(false)
		report, err := im.Run(ctx, opts)
		if err != nil {
			log.Error("后台导入失败", "err", err)
			return
		}
		log.Info("后台导入完成", "imported", report.Imported, "skipped", report.Skipped)
	}()
	return nil
}

// Running 是否有导入任务在执行
func (im *Importer) Running() bool {
	return im.running.Load()
}

// Wait 等待后台任务结束
func (im *Importer) Wait() {
	im.wg.Wait()
}

// Run 按类型逐页导入，单页请求失败时跳过该类型剩余页
func (im *Importer) Run(ctx context.Context, opts ImportOptions) (*ImportReport, error) {
	opts.withDefaults()
	report := &ImportReport{PerGenre: make(map[string]int)}

	known, err := im.repos.Movie.ArchiveIdentifiers(ctx)
	if err != nil {
		return nil, err
	}

	for _, genre := range opts.Genres {
		log.Info("开始导入类型", "genre", genre)
		for page := 1; page <= opts.MaxPages; page++ {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			query := fmt.Sprintf(`collection:(feature_films) AND mediatype:(movies) AND subject:("%s")`, genre)
			docs, err := im.client.Search(ctx, query,
				[]string{"identifier", "title", "description", "year", "runtime"},
				opts.PageSize, page, "")
			if err != nil {
				log.Error("archive 搜索失败", "genre", genre, "page", page, "err", err)
				break
			}
			if len(docs) == 0 {
				break
			}

			for _, doc := range docs {
				ok, err := im.importDoc(ctx, genre, doc, known)
				if err != nil {
					return report, err
				}
				if ok {
					report.Imported++
					report.PerGenre[genre]++
					known[doc.Identifier] = struct{}{}
				} else {
					report.Skipped++
				}
			}

			if opts.Pause > 0 {
				select {
				case <-ctx.Done():
					return report, ctx.Err()
				case <-time.After(opts.Pause):
				}
			}
		}
		log.Info("类型导入完成", "genre", genre, "imported", report.PerGenre[genre])
	}
	return report, nil
}

// importDoc 导入单条，返回 false 表示按规则跳过
func (im *Importer) importDoc(ctx context.Context, genre string, doc ArchiveDoc, known map[string]struct{}) (bool, error) {
	if doc.Identifier == "" {
		return false, nil
	}
	if _, ok := known[doc.Identifier]; ok {
		return false, nil
	}

	title := strings.TrimSpace(firstNonEmpty(doc.Title.String(), "Untitled"))
	exists, err := im.repos.Movie.ExistsByTitle(ctx, title)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	overview := utils.Truncate(firstNonEmpty(utils.StripHTML(doc.Description.String()), "No description."), maxOverviewLength)
	if IsNonMovie(title, overview) {
		log.Debug("跳过非电影条目", "title", title)
		return false, nil
	}

	meta, err := im.client.Metadata(ctx, doc.Identifier)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Warn("获取元数据失败", "identifier", doc.Identifier, "err", err)
		return false, nil
	}

	videoURL := im.client.pickFile(doc.Identifier, meta.Files, importVideoExts)
	if videoURL == "" {
		log.Debug("没有视频文件", "title", title)
		return false, nil
	}
	thumbURL := im.client.pickFile(doc.Identifier, meta.Files, thumbnailExts)
	if thumbURL == "" {
		log.Debug("没有缩略图", "title", title)
		return false, nil
	}

	runtime, ok := utils.ParseRuntime(firstNonEmpty(meta.Metadata.Runtime.String(), doc.Runtime.String()))
	if !ok {
		log.Debug("没有时长", "title", title)
		return false, nil
	}
	if runtime < minFeatureMinutes {
		log.Debug("时长不足", "title", title, "minutes", runtime)
		return false, nil
	}

	identifier := doc.Identifier
	movie := &model.Movie{
		Title:             title,
		Overview:          overview,
		Year:              parseYear(doc.Year.String()),
		Genre:             genre,
		VideoURL:          videoURL,
		ThumbnailURL:      thumbURL,
		RuntimeMinutes:    &runtime,
		ArchiveIdentifier: &identifier,
		IsPublicDomain:    true,
	}
	if err := im.repos.Movie.Create(ctx, movie); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	log.Info("导入电影", "genre", genre, "title", title, "slug", movie.Slug)
	return true, nil
}

// IsNonMovie 预告片、访谈、剧集等
func IsNonMovie(title, overview string) bool {
	return reNonMovie.MatchString(strings.ToLower(title + " " + overview))
}
