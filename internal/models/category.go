package models

import "fmt"

// Category is the closed set of event categories.
type Category string

const (
	CategoryMusic Category = "music"
	CategoryArt   Category = "art"
	CategoryTech  Category = "tech"
	CategoryFood  Category = "food"
	CategoryBook  Category = "book"
	CategoryFilm  Category = "film"
	CategorySport Category = "sport"
	CategoryOther Category = "other"
)

// CategoryInfo is display metadata for a category.
type CategoryInfo struct {
	Label string
	Icon  string
	Color string
}

var categoryInfo = map[Category]CategoryInfo{
	CategoryMusic: {Label: "Music", Icon: "music-note", Color: "#7C4DFF"},
	CategoryArt:   {Label: "Art", Icon: "palette", Color: "#FF7043"},
	CategoryTech:  {Label: "Tech", Icon: "chip", Color: "#29B6F6"},
	CategoryFood:  {Label: "Food", Icon: "fork-knife", Color: "#66BB6A"},
	CategoryBook:  {Label: "Book", Icon: "book-open", Color: "#8D6E63"},
	CategoryFilm:  {Label: "Film", Icon: "film-reel", Color: "#EC407A"},
	CategorySport: {Label: "Sport", Icon: "trophy", Color: "#FFCA28"},
	CategoryOther: {Label: "Other", Icon: "dots", Color: "#90A4AE"},
}

// Categories returns all categories in display order.
func Categories() []Category {
	return []Category{
		CategoryMusic, CategoryArt, CategoryTech, CategoryFood,
		CategoryBook, CategoryFilm, CategorySport, CategoryOther,
	}
}

// ParseCategory validates a raw string against the closed set.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := categoryInfo[c]; !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Valid reports closed-set membership.
func (c Category) Valid() bool {
	_, ok := categoryInfo[c]
	return ok
}

// Info returns the display metadata for the category. Unknown categories
// fall back to the "other" metadata.
func (c Category) Info() CategoryInfo {
	if info, ok := categoryInfo[c]; ok {
		return info
	}
	return categoryInfo[CategoryOther]
}
