package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/pkg/logger"
)

// Page 抓取到的单个页面
type Page struct {
	URL   string
	Title string
	Text  string
}

// StatusError 非 200 响应。4xx 说明页面本身不可用，重试没有意义。
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}

// Permanent 报告该响应码是否不可恢复
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500
}

// Crawler 网页抓取器。followLinks 开启时追踪同域名一层链接。
type Crawler struct {
	client   *http.Client
	maxPages int
	log      logger.Logger
}

// New 创建抓取器
func New(log logger.Logger) *Crawler {
	cfg := config.GetIngestConfig()
	return &Crawler{
		client:   &http.Client{Timeout: cfg.CrawlTimeout},
		maxPages: cfg.CrawlMaxPages,
		log:      log.Named("crawler"),
	}
}

// Crawl 抓取起始页面。followLinks 开启时继续抓取同域名链接，
// 最多 maxPages 个页面。起始页面失败直接返回错误，后续页面失败只记日志。
func (c *Crawler) Crawl(ctx context.Context, rawURL string, followLinks bool) ([]Page, error) {
	base, err := url.Parse(rawURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid url: %s", rawURL)
	}

	first, links, err := c.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	pages := []Page{*first}
	if !followLinks {
		return pages, nil
	}

	seen := map[string]bool{normalizeURL(rawURL): true}
	for _, link := range links {
		if len(pages) >= c.maxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u, err := base.Parse(link)
		if err != nil {
			continue
		}
		u.Fragment = ""
		if u.Host != base.Host {
			continue
		}
		key := normalizeURL(u.String())
		if seen[key] {
			continue
		}
		seen[key] = true

		page, _, err := c.fetch(ctx, u.String())
		if err != nil {
			c.log.Warn("failed to fetch linked page",
				logger.String("url", u.String()),
				logger.Error(err),
			)
			continue
		}
		pages = append(pages, *page)
	}
	return pages, nil
}

// fetch 抓取单个页面，返回正文与页内链接
func (c *Crawler) fetch(ctx context.Context, pageURL string) (*Page, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", "aipower-crawler/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, &StatusError{URL: pageURL, Code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	// 去掉非正文元素
	doc.Find("script, style, nav, footer, header, aside, noscript").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	// 优先取语义化正文容器
	var text string
	for _, sel := range []string{"main", "article", "body"} {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			text = node.Text()
			break
		}
	}
	text = collapseWhitespace(text)

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			href = strings.TrimSpace(href)
			if href != "" && !strings.HasPrefix(href, "#") &&
				!strings.HasPrefix(href, "mailto:") && !strings.HasPrefix(href, "javascript:") {
				links = append(links, href)
			}
		}
	})

	return &Page{URL: pageURL, Title: title, Text: text}, links, nil
}

func normalizeURL(raw string) string {
	return strings.TrimSuffix(raw, "/")
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
