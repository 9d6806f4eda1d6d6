package rest

import (
	"encoding/json"
	"encoding/xml"
	"time"

	"newsroom/internal/domain"
)

// JSON — формат по умолчанию, XML отдаётся по заголовку Accept.
const (
	formatJSON = domain.FeedFormatJSON
	formatXML  = domain.FeedFormatXML
)

type xmlFeedItem struct {
	ID          int64  `xml:"id"`
	Title       string `xml:"title"`
	Body        string `xml:"body"`
	Author      string `xml:"author"`
	Publisher   string `xml:"publisher"`
	PublishedAt string `xml:"published_at"`
}

type xmlFeed struct {
	XMLName xml.Name      `xml:"root"`
	Items   []xmlFeedItem `xml:"article"`
}

// renderFeed сериализует ленту в выбранный формат. Null-значения в XML
// отдаются пустым текстом элемента.
func renderFeed(items []domain.FeedItem, format string) ([]byte, string, error) {
	if format == formatXML {
		feed := xmlFeed{Items: make([]xmlFeedItem, 0, len(items))}
		for _, item := range items {
			publishedAt := ""
			if item.PublishedAt != nil {
				publishedAt = item.PublishedAt.Format(time.RFC3339)
			}
			feed.Items = append(feed.Items, xmlFeedItem{
				ID:          item.ID,
				Title:       item.Title,
				Body:        item.Body,
				Author:      item.Author,
				Publisher:   item.Publisher,
				PublishedAt: publishedAt,
			})
		}
		raw, err := xml.Marshal(feed)
		if err != nil {
			return nil, "", err
		}
		return raw, "application/xml", nil
	}

	if items == nil {
		items = []domain.FeedItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, "", err
	}
	return raw, "application/json", nil
}
