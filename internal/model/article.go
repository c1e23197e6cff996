package model

// Article is a single entry pulled out of a newsletter body.
type Article struct {
	// Title is the anchor text of the article link.
	Title string `json:"title" db:"title"`

	// Summary is the text that follows the link in the newsletter, or a
	// shortened title when none was found.
	Summary string `json:"summary" db:"summary"`

	// Link is the article URL exactly as it appeared in the href.
	Link string `json:"link" db:"link"`
}
