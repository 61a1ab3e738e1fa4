package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	"github.com/cineshelfapp/cineshelf/internal/search"
	"github.com/cineshelfapp/cineshelf/internal/titles"
)

func (s *Server) registerTitleRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "saveTitle",
		Method:      http.MethodPost,
		Path:        "/api/v1/titles",
		Summary:     "Save title",
		Description: "Creates or refreshes a title in the shared catalog, keyed by external id",
		Tags:        []string{"Titles"},
	}, s.handleSaveTitle)

	huma.Register(s.api, huma.Operation{
		OperationID: "lookupTitle",
		Method:      http.MethodGet,
		Path:        "/api/v1/titles/lookup",
		Summary:     "Look up title by name",
		Description: "Returns the most recently updated title whose name matches exactly, ignoring case",
		Tags:        []string{"Titles"},
	}, s.handleLookupTitle)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchTitles",
		Method:      http.MethodGet,
		Path:        "/api/v1/titles/search",
		Summary:     "Search titles",
		Description: "Full-text search over title names, directors, and plots",
		Tags:        []string{"Titles"},
	}, s.handleSearchTitles)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTitle",
		Method:      http.MethodGet,
		Path:        "/api/v1/titles/{externalId}",
		Summary:     "Get title",
		Tags:        []string{"Titles"},
	}, s.handleGetTitle)
}

// === DTOs ===

// SaveTitleInput contains the title to save.
type SaveTitleInput struct {
	Body domain.Title
}

// SaveTitleOutput wraps the saved title for Huma.
type SaveTitleOutput struct {
	Body titles.SaveResult
}

// LookupTitleInput contains the name to look up.
type LookupTitleInput struct {
	Name string `query:"name" required:"true" minLength:"1" maxLength:"500" doc:"Title name, matched case-insensitively"`
}

// GetTitleInput contains the external id of a title.
type GetTitleInput struct {
	ExternalID string `path:"externalId" maxLength:"100" doc:"External identifier, for example an IMDb id"`
}

// TitleOutput wraps a single title for Huma.
type TitleOutput struct {
	Body domain.Title
}

// SearchTitlesInput contains parameters for searching titles.
type SearchTitlesInput struct {
	Query   string `query:"q" required:"true" minLength:"1" maxLength:"200" doc:"Search query"`
	Genre   string `query:"genre" maxLength:"100" doc:"Only titles with this genre"`
	MinYear int    `query:"min_year" minimum:"0" maximum:"9999" doc:"Earliest release year"`
	MaxYear int    `query:"max_year" minimum:"0" maximum:"9999" doc:"Latest release year"`
	Limit   int    `query:"limit" minimum:"1" maximum:"100" doc:"Max results (default 20)"`
	Offset  int    `query:"offset" minimum:"0" doc:"Pagination offset"`
}

// SearchTitlesOutput wraps the search result for Huma.
type SearchTitlesOutput struct {
	Body search.Result
}

// === Handlers ===

func (s *Server) handleSaveTitle(ctx context.Context, input *SaveTitleInput) (*SaveTitleOutput, error) {
	res, err := s.titles.Save(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return &SaveTitleOutput{Body: *res}, nil
}

func (s *Server) handleLookupTitle(ctx context.Context, input *LookupTitleInput) (*TitleOutput, error) {
	t, err := s.titles.Lookup(ctx, input.Name)
	if err != nil {
		return nil, err
	}
	return &TitleOutput{Body: *t}, nil
}

func (s *Server) handleGetTitle(ctx context.Context, input *GetTitleInput) (*TitleOutput, error) {
	t, err := s.titles.Get(ctx, input.ExternalID)
	if err != nil {
		return nil, err
	}
	return &TitleOutput{Body: *t}, nil
}

func (s *Server) handleSearchTitles(ctx context.Context, input *SearchTitlesInput) (*SearchTitlesOutput, error) {
	res, err := s.titles.Search(ctx, search.Params{
		Query:     input.Query,
		Genre:     input.Genre,
		MinYear:   input.MinYear,
		MaxYear:   input.MaxYear,
		Limit:     input.Limit,
		Offset:    input.Offset,
		Highlight: true,
	})
	if err != nil {
		return nil, err
	}
	if res.Hits == nil {
		res.Hits = []search.Hit{}
	}
	return &SearchTitlesOutput{Body: *res}, nil
}
