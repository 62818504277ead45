package usecase

import "github.com/goldstream/goldstream/internal/domain"

// CatalogService serves the static content: categories, countries, posts and
// landing reviews.
type CatalogService struct {
	Catalog domain.CatalogRepository
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(catalog domain.CatalogRepository) CatalogService {
	return CatalogService{Catalog: catalog}
}

// Categories returns all dream categories.
func (s CatalogService) Categories(ctx domain.Context) ([]domain.Category, error) {
	return s.Catalog.Categories(ctx)
}

// Countries returns the active countries.
func (s CatalogService) Countries(ctx domain.Context) ([]domain.Country, error) {
	return s.Catalog.Countries(ctx)
}

// Posts pages published posts for a language.
func (s CatalogService) Posts(ctx domain.Context, language string, p domain.Page) ([]domain.Post, int, error) {
	return s.Catalog.Posts(ctx, language, p)
}

// Post returns one published post.
func (s CatalogService) Post(ctx domain.Context, id int64) (domain.Post, error) {
	return s.Catalog.Post(ctx, id)
}

// Reviews pages the landing testimonials for a language.
func (s CatalogService) Reviews(ctx domain.Context, lang string, p domain.Page) ([]domain.Review, int, error) {
	return s.Catalog.Reviews(ctx, lang, p)
}
