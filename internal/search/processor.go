package search

import "github.com/hyperjump/vidgrep/internal/models"

// ProcessQuery validates the query and fills zero-valued knobs from cfg.
func ProcessQuery(query *models.SearchQuery, cfg Config) error {
	if err := query.Validate(); err != nil {
		return err
	}
	if query.TopK == 0 {
		query.TopK = cfg.TopK
	}
	if query.Limit == 0 {
		query.Limit = cfg.Limit
	}
	if query.Window == 0 {
		query.Window = cfg.Window
	}
	if query.Render == nil {
		render := cfg.Render
		query.Render = &render
	}
	return nil
}
