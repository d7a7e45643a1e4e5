package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"
	"github.com/user/papertiger/internal/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	previewCacheKey    = "archive:preview"
	previewRows        = 20
	metadataFetchLimit = 5
	previewTimeout     = 30 * time.Second
)

// FlexString archive.org 的字段可能是字符串、数字或字符串数组
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var list []FlexString
	if err := json.Unmarshal(data, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, p := range list {
			if p != "" {
				parts = append(parts, string(p))
			}
		}
		*f = FlexString(strings.Join(parts, " "))
		return nil
	}
	return fmt.Errorf("unsupported archive field: %s", data)
}

func (f FlexString) String() string { return string(f) }

// ArchiveDoc advancedsearch 返回的条目
type ArchiveDoc struct {
	Identifier  string     `json:"identifier"`
	Title       FlexString `json:"title"`
	Description FlexString `json:"description"`
	Year        FlexString `json:"year"`
	Creator     FlexString `json:"creator"`
	Runtime     FlexString `json:"runtime"`
}

// ArchiveFile 条目下的文件
type ArchiveFile struct {
	Name   string `json:"name"`
	Format string `json:"format"`
}

// ArchiveMetadata metadata 接口返回
type ArchiveMetadata struct {
	Files    []ArchiveFile `json:"files"`
	Metadata struct {
		Runtime FlexString `json:"runtime"`
	} `json:"metadata"`
}

// ArchiveMovie 预览结果
type ArchiveMovie struct {
	Title        string `json:"title"`
	Overview     string `json:"overview"`
	Year         *int   `json:"year"`
	Creator      string `json:"creator"`
	Identifier   string `json:"identifier"`
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type searchResponse struct {
	Response struct {
		NumFound int          `json:"numFound"`
		Docs     []ArchiveDoc `json:"docs"`
	} `json:"response"`
}

// ArchiveClient Internet Archive 查询客户端
type ArchiveClient struct {
	http    *utils.HTTPClient
	baseURL string
	cache   *cache.Cache
	sf      singleflight.Group
}

// NewArchiveClient 创建客户端，预览结果缓存 10 分钟
func NewArchiveClient(httpClient *utils.HTTPClient, baseURL string) *ArchiveClient {
	return &ArchiveClient{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   utils.NewTTLCache(10*time.Minute, 20*time.Minute),
	}
}

// Search advancedsearch 查询
func (c *ArchiveClient) Search(ctx context.Context, query string, fields []string, rows, page int, sort string) ([]ArchiveDoc, error) {
	params := url.Values{}
	params.Set("q", query)
	for _, f := range fields {
		params.Add("fl[]", f)
	}
	if sort != "" {
		params.Set("sort[]", sort)
	}
	params.Set("rows", strconv.Itoa(rows))
	params.Set("page", strconv.Itoa(page))
	params.Set("output", "json")

	var resp searchResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/advancedsearch.php", params, &resp); err != nil {
		return nil, err
	}
	return resp.Response.Docs, nil
}

// Metadata 获取条目的文件列表和元信息
func (c *ArchiveClient) Metadata(ctx context.Context, identifier string) (*ArchiveMetadata, error) {
	var meta ArchiveMetadata
	if err := c.http.GetJSON(ctx, c.baseURL+"/metadata/"+url.PathEscape(identifier), nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// DownloadURL 文件下载地址
func (c *ArchiveClient) DownloadURL(identifier, name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/download/" + url.PathEscape(identifier) + "/" + strings.Join(segments, "/")
}

// Preview 下载量最高的 20 部公版电影，相同请求合并且结果缓存
func (c *ArchiveClient) Preview(ctx context.Context) ([]ArchiveMovie, error) {
	if cached, ok := c.cache.Get(previewCacheKey); ok {
		return cached.([]ArchiveMovie), nil
	}

	v, err, _ := c.sf.Do(previewCacheKey, func() (interface{}, error) {
		// 合并的请求共享这次下载，不能跟随第一个调用方取消
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), previewTimeout)
		defer cancel()
		movies, err := c.fetchPreview(fctx)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(previewCacheKey, movies)
		return movies, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ArchiveMovie), nil
}

func (c *ArchiveClient) fetchPreview(ctx context.Context) ([]ArchiveMovie, error) {
	docs, err := c.Search(ctx,
		"collection:(feature_films) AND mediatype:(movies) AND format:(mpeg4)",
		[]string{"identifier", "title", "description", "year", "creator"},
		previewRows, 1, "downloads desc")
	if err != nil {
		return nil, err
	}

	movies := make([]ArchiveMovie, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metadataFetchLimit)
	for i, doc := range docs {
		movies[i] = ArchiveMovie{
			Title:      firstNonEmpty(doc.Title.String(), "No Title"),
			Overview:   firstNonEmpty(utils.StripHTML(doc.Description.String()), "No Description"),
			Year:       parseYear(doc.Year.String()),
			Creator:    doc.Creator.String(),
			Identifier: doc.Identifier,
		}
		if doc.Identifier == "" {
			continue
		}
		g.Go(func() error {
			meta, err := c.Metadata(gctx, doc.Identifier)
			if err != nil {
				// 单条元数据失败不影响整体预览
				log.Warn("获取 archive 元数据失败", "identifier", doc.Identifier, "err", err)
				return nil
			}
			movies[i].VideoURL = c.pickFile(doc.Identifier, meta.Files, previewVideoExts)
			movies[i].ThumbnailURL = c.pickFile(doc.Identifier, meta.Files, thumbnailExts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return movies, nil
}

var (
	previewVideoExts = []string{".mp4"}
	importVideoExts  = []string{".mp4", ".webm", ".mkv", ".avi", ".ogv"}
	thumbnailExts    = []string{".jpg", ".png"}
)

// pickFile 第一个扩展名匹配的文件
func (c *ArchiveClient) pickFile(identifier string, files []ArchiveFile, exts []string) string {
	for _, f := range files {
		name := strings.ToLower(f.Name)
		for _, ext := range exts {
			if strings.HasSuffix(name, ext) {
				return c.DownloadURL(identifier, f.Name)
			}
		}
	}
	return ""
}

func parseYear(raw string) *int {
	raw = strings.TrimSpace(raw)
	if len(raw) > 4 {
		raw = raw[:4]
	}
	y, err := strconv.Atoi(raw)
	if err != nil || y <= 0 {
		return nil
	}
	return &y
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
