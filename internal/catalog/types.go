package catalog

// Kind selects the discover endpoint family.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindTV     Kind = "tv"
	KindPerson Kind = "person"
)

// Item is the raw catalog payload. The service returns heterogeneous shapes
// from one endpoint family: movies carry title/poster_path, shows carry
// name, persons carry name/profile_path plus a known_for list. MediaType is
// only populated on mixed endpoints; callers that query a single kind tag
// items themselves.
type Item struct {
	ID          int64   `json:"id"`
	MediaType   string  `json:"media_type,omitempty"`
	Title       string  `json:"title,omitempty"`
	Name        string  `json:"name,omitempty"`
	PosterPath  string  `json:"poster_path,omitempty"`
	ProfilePath string  `json:"profile_path,omitempty"`
	VoteAverage float64 `json:"vote_average,omitempty"`
	Popularity  float64 `json:"popularity,omitempty"`
	KnownFor    []Item  `json:"known_for,omitempty"`
}

// DisplayTitle returns whichever of title/name the payload populated.
func (i Item) DisplayTitle() string {
	if i.Title != "" {
		return i.Title
	}
	return i.Name
}

type page struct {
	Page    int    `json:"page"`
	Results []Item `json:"results"`
}

// video is one entry of a title's videos listing.
type video struct {
	Site string `json:"site"`
	Type string `json:"type"`
	Key  string `json:"key"`
}

type videoPage struct {
	Results []video `json:"results"`
}
