package media

// Type tags the heterogeneous catalog shapes. Every consumer switches on
// this tag instead of probing optional fields.
type Type string

const (
	TypeMovie  Type = "movie"
	TypeTV     Type = "tv"
	TypePerson Type = "person"
)

// Valid reports whether t is one of the known media types.
func (t Type) Valid() bool {
	switch t {
	case TypeMovie, TypeTV, TypePerson:
		return true
	}
	return false
}

// Candidate is the normalized recommendation item handed to rendering.
// Score is nil for person candidates, which have no vote average. KnownFor
// is populated only for persons.
type Candidate struct {
	ID         int64       `json:"id"`
	MediaType  Type        `json:"mediaType"`
	Title      string      `json:"title"`
	PosterRef  string      `json:"posterRef,omitempty"`
	Score      *float64    `json:"score,omitempty"`
	TrailerRef string      `json:"trailerRef,omitempty"`
	KnownFor   []Candidate `json:"knownFor,omitempty"`
	Feedback   *Feedback   `json:"feedback,omitempty"`
}

// Clone returns a deep copy of the candidate. Pointer fields and the
// KnownFor list get fresh storage, so writes to the copy never reach the
// original.
func (c Candidate) Clone() Candidate {
	out := c
	if c.Score != nil {
		score := *c.Score
		out.Score = &score
	}
	if c.Feedback != nil {
		feedback := *c.Feedback
		out.Feedback = &feedback
	}
	if len(c.KnownFor) > 0 {
		out.KnownFor = make([]Candidate, len(c.KnownFor))
		for i, kf := range c.KnownFor {
			out.KnownFor[i] = kf.Clone()
		}
	}
	return out
}

// Key uniquely identifies a candidate within one resolution result.
type Key struct {
	ID        int64
	MediaType Type
}

// Key returns the dedup key for the candidate.
func (c Candidate) Key() Key {
	return Key{ID: c.ID, MediaType: c.MediaType}
}

// Feedback is a user's recorded sentiment for one media item.
type Feedback int

const (
	FeedbackDislike Feedback = 0
	FeedbackLike    Feedback = 1
)

// Valid reports whether f carries one of the two wire values.
func (f Feedback) Valid() bool {
	return f == FeedbackDislike || f == FeedbackLike
}

func (f Feedback) String() string {
	if f == FeedbackLike {
		return "like"
	}
	return "dislike"
}
