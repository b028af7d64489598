package model

import "time"

// NewsItem is a headline as given by the provider.
type NewsItem struct {
	Title       string    `json:"title"`
	Publisher   string    `json:"publisher"`
	PublishedAt time.Time `json:"published_at"`
	Link        string    `json:"link"`
}

// CapNews keeps provider order and drops everything past MaxNewsItems.
func CapNews(items []NewsItem) []NewsItem {
	if len(items) > MaxNewsItems {
		return items[:MaxNewsItems]
	}
	return items
}
