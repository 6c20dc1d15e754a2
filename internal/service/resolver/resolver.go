package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/yangruichen/cinechat/backend/internal/catalog"
	"github.com/yangruichen/cinechat/backend/internal/metrics"
	"github.com/yangruichen/cinechat/backend/internal/model/media"
)

// catalogQuery is the static binding of one recommend intent to a catalog
// request. Blended categories list several genre ids.
type catalogQuery struct {
	Kind   catalog.Kind
	Genres []int
}

// intentQueries maps every recommend_* intent to its catalog query. Genre
// ids follow the catalog service's taxonomy. Chat intents are absent on
// purpose: they resolve to no query at all.
var intentQueries = map[string]catalogQuery{
	"recommend_action":      {Kind: catalog.KindMovie, Genres: []int{28}},
	"recommend_adventure":   {Kind: catalog.KindMovie, Genres: []int{12}},
	"recommend_animation":   {Kind: catalog.KindMovie, Genres: []int{16}},
	"recommend_comedy":      {Kind: catalog.KindMovie, Genres: []int{35}},
	"recommend_documentary": {Kind: catalog.KindMovie, Genres: []int{99}},
	"recommend_drama":       {Kind: catalog.KindMovie, Genres: []int{18}},
	"recommend_family":      {Kind: catalog.KindMovie, Genres: []int{10751}},
	"recommend_horror":      {Kind: catalog.KindMovie, Genres: []int{27}},
	"recommend_romance":     {Kind: catalog.KindMovie, Genres: []int{10749}},
	"recommend_romcom":      {Kind: catalog.KindMovie, Genres: []int{10749, 35}},
	"recommend_scifi":       {Kind: catalog.KindMovie, Genres: []int{878}},
	"recommend_thriller":    {Kind: catalog.KindMovie, Genres: []int{53}},
	"recommend_series":      {Kind: catalog.KindTV},
	"recommend_crime_tv":    {Kind: catalog.KindTV, Genres: []int{80}},
	"recommend_stars":       {Kind: catalog.KindPerson},
}

// Service turns recognized intents into normalized media candidates.
type Service struct {
	catalog catalog.Querier
	logger  *zap.Logger
}

// NewService wires the resolver to a catalog querier.
func NewService(querier catalog.Querier, logger *zap.Logger) *Service {
	return &Service{catalog: querier, logger: logger}
}

// HasQuery reports whether the intent maps to a catalog query. Intents
// without one are pure-chat intents whose reply needs no media.
func HasQuery(intent string) bool {
	_, ok := intentQueries[intent]
	return ok
}

// HasQuery implements the orchestrator's Resolver interface.
func (s *Service) HasQuery(intent string) bool {
	return HasQuery(intent)
}

// Resolve issues the intent's catalog query and normalizes the result. An
// empty list with nil error means the category had nothing; a non-nil error
// means the catalog itself failed. Callers attach no media either way and
// only choose different wording.
func (s *Service) Resolve(ctx context.Context, intent string) ([]media.Candidate, error) {
	query, ok := intentQueries[intent]
	if !ok {
		return nil, nil
	}

	var (
		items []catalog.Item
		err   error
	)
	if query.Kind == catalog.KindPerson {
		items, err = s.catalog.TrendingPeople(ctx)
	} else {
		items, err = s.catalog.Discover(ctx, query.Kind, query.Genres)
	}
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("catalog query failed",
			zap.String("intent", intent),
			zap.String("kind", string(query.Kind)),
			zap.Error(err))
		return nil, err
	}
	metrics.CatalogRequestsTotal.WithLabelValues("ok").Inc()

	candidates := Dedupe(Normalize(query.Kind, items))
	if len(candidates) == 0 {
		s.logger.Info("catalog query returned no candidates",
			zap.String("intent", intent),
			zap.String("kind", string(query.Kind)))
		return candidates, nil
	}

	s.attachTrailers(ctx, candidates)
	return candidates, nil
}

// maxTrailerLookups bounds the extra videos calls spent per resolution.
const maxTrailerLookups = 6

// attachTrailers fills TrailerRef for the leading movie and show candidates.
// Lookups are best effort: a failed or missing trailer leaves the field
// empty and never fails the resolution.
func (s *Service) attachTrailers(ctx context.Context, candidates []media.Candidate) {
	lookups := 0
	for i := range candidates {
		if lookups >= maxTrailerLookups {
			return
		}
		candidate := &candidates[i]
		if candidate.MediaType == media.TypePerson {
			continue
		}
		lookups++

		key, err := s.catalog.Trailer(ctx, catalog.Kind(candidate.MediaType), candidate.ID)
		if err != nil {
			s.logger.Debug("trailer lookup failed",
				zap.Int64("id", candidate.ID),
				zap.String("mediaType", string(candidate.MediaType)),
				zap.Error(err))
			continue
		}
		candidate.TrailerRef = key
	}
}

// Normalize maps the raw catalog shapes onto candidates. Person items
// contribute both a person candidate (carrying its known-for titles) and the
// known-for titles themselves as independently renderable candidates.
func Normalize(kind catalog.Kind, items []catalog.Item) []media.Candidate {
	out := make([]media.Candidate, 0, len(items))
	for _, item := range items {
		switch itemType(kind, item) {
		case media.TypePerson:
			person := media.Candidate{
				ID:        item.ID,
				MediaType: media.TypePerson,
				Title:     item.DisplayTitle(),
				PosterRef: item.ProfilePath,
			}
			for _, kf := range item.KnownFor {
				title := normalizeTitle(kf)
				person.KnownFor = append(person.KnownFor, title)
			}
			out = append(out, person)
			out = append(out, person.KnownFor...)
		case media.TypeTV:
			candidate := normalizeTitle(item)
			candidate.MediaType = media.TypeTV
			out = append(out, candidate)
		default:
			out = append(out, normalizeTitle(item))
		}
	}
	return out
}

// normalizeTitle maps a movie or show payload. Shows populate name rather
// than title and are tagged by media_type on mixed endpoints.
func normalizeTitle(item catalog.Item) media.Candidate {
	mediaType := media.TypeMovie
	if item.MediaType == string(catalog.KindTV) || (item.Title == "" && item.Name != "") {
		mediaType = media.TypeTV
	}
	score := item.VoteAverage
	return media.Candidate{
		ID:        item.ID,
		MediaType: mediaType,
		Title:     item.DisplayTitle(),
		PosterRef: item.PosterPath,
		Score:     &score,
	}
}

func itemType(kind catalog.Kind, item catalog.Item) media.Type {
	switch item.MediaType {
	case string(catalog.KindMovie):
		return media.TypeMovie
	case string(catalog.KindTV):
		return media.TypeTV
	case string(catalog.KindPerson):
		return media.TypePerson
	}
	switch kind {
	case catalog.KindTV:
		return media.TypeTV
	case catalog.KindPerson:
		return media.TypePerson
	}
	return media.TypeMovie
}

// Dedupe drops repeated (id, mediaType) pairs, keeping first occurrence
// order. It applies to the full materialized list, person expansions
// included.
func Dedupe(candidates []media.Candidate) []media.Candidate {
	seen := make(map[media.Key]struct{}, len(candidates))
	out := candidates[:0]
	for _, candidate := range candidates {
		key := candidate.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, candidate)
	}
	return out
}
