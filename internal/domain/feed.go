package domain

import "time"

// Item представляет отдельную запись ленты в том виде, в каком её вернул парсер.
// Published хранит исходную строку даты, PublishedAt - разобранное значение, если оно есть.
type Item struct {
	Title       string
	Link        string
	Description string
	Published   string
	PublishedAt *time.Time
}

// Feed представляет полную RSS/Atom-ленту с метаданными и списком записей.
type Feed struct {
	Title       string
	Link        string
	Description string
	Items       []Item
}
