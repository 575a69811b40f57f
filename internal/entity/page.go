package entity

// Page is a rendered HTML page.
type Page struct {
	Title   string
	Content string
}
