// Package manuscript normalizes stored project and chapter records into a
// render-ready tree shared by all output formats.
package manuscript

// ProjectRecord is a raw project row as kept by manuscript store.
type ProjectRecord struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Author         string `json:"author"`
	Genre          string `json:"genre"`
	Description    string `json:"description"`
	Language       string `json:"language"`
	CoverImages    string `json:"cover_images"`
	DefaultCoverID string `json:"default_cover_id"`
}

// ChapterRecord is a raw chapter row as kept by manuscript store.
type ChapterRecord struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	Title         string `json:"title"`
	OrderIndex    int    `json:"order_index"`
	OutlineGoal   string `json:"outline_goal"`
	DraftText     string `json:"draft_text"`
	FinalText     string `json:"final_text"`
	Illustrations string `json:"illustrations"`
}

// Image references image payload: data URL, bare base64 or file path.
type Image struct {
	ID     string
	Name   string
	Source string
	Prompt string
}

// Illustration is an image placed after paragraph with 1-based Anchor index.
type Illustration struct {
	ID     string
	Anchor int
	Image  Image
}

type Chapter struct {
	ID            string
	Index         int
	Title         string
	DisplayTitle  string
	Summary       *string
	Prologue      bool
	Paragraphs    []string
	Illustrations []Illustration
	Cover         *Image
}

// IllustrationsAt returns illustrations anchored to paragraph (1-based) in
// original order.
func (c *Chapter) IllustrationsAt(anchor int) []Illustration {
	var res []Illustration
	for _, ill := range c.Illustrations {
		if ill.Anchor == anchor {
			res = append(res, ill)
		}
	}
	return res
}

// Manuscript is an immutable snapshot produced for single export.
type Manuscript struct {
	ID          string
	Title       string
	Author      string
	Genre       string
	Description string
	Language    string
	Locale      *Locale
	Covers      []Image
	Cover       *Image
	Chapters    []Chapter
}
