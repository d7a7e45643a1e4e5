package utils

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reNonSlug    = regexp.MustCompile(`[^a-z0-9]+`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Slugify 标题转 URL 片段，空结果回退为 "movie"
func Slugify(title string) string {
	s := reNonSlug.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "movie"
	}
	// 纯数字 slug 会和 ID 混淆
	if strings.Trim(s, "0123456789") == "" {
		return "movie-" + s
	}
	return s
}

// StripHTML 去掉 HTML 标签，合并空白
func StripHTML(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return collapseSpaces(raw)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapseSpaces(raw)
	}
	return collapseSpaces(doc.Text())
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// Truncate 按字符截断
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// ParseRuntime 解析时长，支持 HH:MM:SS、MM:SS 和纯数字（分钟），返回分钟数
func ParseRuntime(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	if strings.Contains(raw, ":") {
		parts := strings.Split(raw, ":")
		nums := make([]int, len(parts))
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 {
				return 0, false
			}
			nums[i] = n
		}
		switch len(nums) {
		case 3:
			return nums[0]*60 + nums[1], true
		case 2:
			return nums[0], true
		default:
			return 0, false
		}
	}

	// "85 min"、"85.5" 之类取前面的数字
	fields := strings.Fields(raw)
	f, err := strconv.ParseFloat(strings.TrimRight(fields[0], "m"), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int(f), true
}
