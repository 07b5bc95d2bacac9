package channels

import (
	"strings"

	"github.com/serieshub/channels/internal/models"
)

// ExcerptWordLimit caps item excerpts in the composed feed.
const ExcerptWordLimit = 24

// Item is the uniform shape every feed entry is normalized to, whether
// it started life as an article or a series. The client filters the
// payload by type without refetching, so both kinds travel together.
type Item struct {
	ID           int64    `json:"id"`
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	Permalink    string   `json:"permalink"`
	Excerpt      string   `json:"excerpt"`
	Image        string   `json:"image"`
	Series       []string `json:"series"`
	IsSubscribed bool     `json:"isSubscribed"`
	IsFavorited  bool     `json:"isFavorited"`
	Views        int64    `json:"views"`
}

// Row is one titled, ordered section of the composed feed
type Row struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Items []Item `json:"items"`

	// RotationMS is set on the featured row only; the client renders
	// that row as an auto-rotating carousel.
	RotationMS int `json:"rotationMs,omitempty"`
}

// TrimWords truncates s to at most limit words, appending an ellipsis
// when anything was cut.
func TrimWords(s string, limit int) string {
	words := strings.Fields(s)
	if len(words) <= limit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:limit], " ") + "…"
}

func postItem(a *models.Article, v *viewerState) Item {
	return Item{
		ID:           a.ID,
		Type:         "post",
		Title:        a.Title,
		Permalink:    a.Permalink,
		Excerpt:      TrimWords(a.Excerpt, ExcerptWordLimit),
		Image:        a.Thumbnail(),
		Series:       a.SeriesNames(),
		IsSubscribed: v.subscribedToAny(a.SeriesIDs()),
		IsFavorited:  v.favorited(a.ID),
		Views:        a.ViewCount,
	}
}

// seriesItem maps a series to the uniform shape. Subscription state
// doubles as the favorite flag; for series the two are the same edge.
func seriesItem(s *models.Series, image string, v *viewerState) Item {
	subscribed := v.subscribed(s.ID)
	return Item{
		ID:           s.ID,
		Type:         "series",
		Title:        s.Name,
		Permalink:    s.Permalink,
		Excerpt:      TrimWords(s.Description, ExcerptWordLimit),
		Image:        image,
		Series:       []string{},
		IsSubscribed: subscribed,
		IsFavorited:  subscribed,
		Views:        int64(s.Score),
	}
}

// viewerState carries one request's personalization lookups, resolved
// once up front. The ordered slices keep favorite-insertion and
// subscription order for the favorites rows; the maps serve flag
// lookups. The zero value is the anonymous viewer.
type viewerState struct {
	favoriteIDs   map[int64]bool
	seriesIDs     map[int64]bool
	favoriteOrder []int64
	seriesOrder   []int64
}

func (v *viewerState) favorited(articleID int64) bool {
	return v.favoriteIDs[articleID]
}

func (v *viewerState) subscribed(seriesID int64) bool {
	return v.seriesIDs[seriesID]
}

func (v *viewerState) subscribedToAny(seriesIDs []int64) bool {
	for _, id := range seriesIDs {
		if v.seriesIDs[id] {
			return true
		}
	}
	return false
}
