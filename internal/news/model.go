package news

import (
	"bytes"
	"encoding/json"

	"texplicit_backend/internal/domain"
)

// FetchRequest is the /get-news query.
type FetchRequest struct {
	Query    string              `form:"query" json:"query"`
	Engine   domain.SearchEngine `form:"engine" json:"engine"`
	Count    int                 `form:"count" json:"count"`
	Start    int                 `form:"start" json:"start"`
	RandomID string              `form:"randomId" json:"randomId"`
}

// Article is the news payload posted back by the client. Older clients send the body as "summary".
type Article struct {
	Title   string `json:"title"`
	Text    string `json:"text"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// Body returns the article text.
func (a Article) Body() string {
	if a.Text != "" {
		return a.Text
	}
	return a.Summary
}

// FolderRef accepts "/" or a folder id as a string, or a folder record carrying "_id".
type FolderRef string

func (f *FolderRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "/" {
			s = ""
		}
		*f = FolderRef(s)
		return nil
	}
	var rec struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*f = FolderRef(rec.ID)
	return nil
}

// SaveRequest is the /news-document body.
type SaveRequest struct {
	News   *Article  `json:"news" binding:"required"`
	Folder FolderRef `json:"folder"`
}

// Done is the data of the last event of a news search.
type Done struct {
	Done  bool `json:"done"`
	Count int  `json:"count"`
}
