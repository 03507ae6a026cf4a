package models

// VolumeInfo is the shape a book-metadata lookup (Google Books, Open
// Library) must return. The clients themselves live outside this module;
// only the data contract is fixed here.
type VolumeInfo struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Publisher     string   `json:"publisher"`
	Description   string   `json:"description"`
	PageCount     int      `json:"page_count"`
	Categories    []string `json:"categories"`
	ISBN10        string   `json:"isbn_10"`
	ISBN13        string   `json:"isbn_13"`
	CoverImageURL string   `json:"cover_image_url"`
}
