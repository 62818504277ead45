package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/goldstream/goldstream/internal/domain"
)

// CatalogRepo serves the mostly-static content tables: categories, countries,
// posts and landing reviews.
type CatalogRepo struct{ Pool PgxPool }

// NewCatalogRepo constructs a CatalogRepo with the given pool.
func NewCatalogRepo(p PgxPool) *CatalogRepo { return &CatalogRepo{Pool: p} }

// Categories returns all dream categories.
func (r *CatalogRepo) Categories(ctx domain.Context) ([]domain.Category, error) {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.Categories")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT id, title, image FROM category ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("op=catalog.categories: %w", err)
	}
	defer rows.Close()
	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.Image); err != nil {
			return nil, fmt.Errorf("op=catalog.categories: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=catalog.categories: %w", err)
	}
	return out, nil
}

// Countries returns the active countries in title order.
func (r *CatalogRepo) Countries(ctx domain.Context) ([]domain.Country, error) {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.Countries")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT id, title, code, is_active FROM country WHERE is_active ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("op=catalog.countries: %w", err)
	}
	defer rows.Close()
	var out []domain.Country
	for rows.Next() {
		var c domain.Country
		if err := rows.Scan(&c.ID, &c.Title, &c.Code, &c.IsActive); err != nil {
			return nil, fmt.Errorf("op=catalog.countries: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=catalog.countries: %w", err)
	}
	return out, nil
}

const postColumns = `id, title, cover_url, language, text, markup_text, tags, is_published, published_date, created_at`

// Posts pages published posts for a language, newest first.
func (r *CatalogRepo) Posts(ctx domain.Context, language string, p domain.Page) ([]domain.Post, int, error) {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.Posts")
	defer span.End()
	q := `SELECT ` + postColumns + `, COUNT(*) OVER () AS total FROM post
		WHERE is_published AND language=$1
		ORDER BY published_date DESC NULLS LAST, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.Pool.Query(ctx, q, language, p.Size, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("op=catalog.posts: %w", err)
	}
	defer rows.Close()
	var out []domain.Post
	var total int
	for rows.Next() {
		var po domain.Post
		err := rows.Scan(&po.ID, &po.Title, &po.CoverURL, &po.Language, &po.Text, &po.MarkupText,
			&po.Tags, &po.IsPublished, &po.PublishedDate, &po.CreatedAt, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("op=catalog.posts: %w", err)
		}
		out = append(out, po)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("op=catalog.posts: %w", err)
	}
	return out, total, nil
}

// Post loads one published post.
func (r *CatalogRepo) Post(ctx domain.Context, id int64) (domain.Post, error) {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.Post")
	defer span.End()
	var po domain.Post
	err := r.Pool.QueryRow(ctx, `SELECT `+postColumns+` FROM post WHERE id=$1 AND is_published`, id).
		Scan(&po.ID, &po.Title, &po.CoverURL, &po.Language, &po.Text, &po.MarkupText,
			&po.Tags, &po.IsPublished, &po.PublishedDate, &po.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Post{}, fmt.Errorf("op=catalog.post: %w", domain.ErrNotFound)
		}
		return domain.Post{}, fmt.Errorf("op=catalog.post: %w", err)
	}
	return po, nil
}

// Reviews pages active testimonials for a language.
func (r *CatalogRepo) Reviews(ctx domain.Context, lang string, p domain.Page) ([]domain.Review, int, error) {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.Reviews")
	defer span.End()
	q := `SELECT id, name, photo, lang, text, sort, is_active, COUNT(*) OVER () AS total FROM review
		WHERE is_active AND lang=$1 ORDER BY sort, id LIMIT $2 OFFSET $3`
	rows, err := r.Pool.Query(ctx, q, lang, p.Size, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("op=catalog.reviews: %w", err)
	}
	defer rows.Close()
	var out []domain.Review
	var total int
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.Name, &rv.Photo, &rv.Lang, &rv.Text, &rv.Sort, &rv.IsActive, &total); err != nil {
			return nil, 0, fmt.Errorf("op=catalog.reviews: %w", err)
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("op=catalog.reviews: %w", err)
	}
	return out, total, nil
}

// UpsertCategory inserts or updates a category by title. Seeding only.
func (r *CatalogRepo) UpsertCategory(ctx domain.Context, c domain.Category) error {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.UpsertCategory")
	defer span.End()
	q := `INSERT INTO category (title, image) VALUES ($1,$2)
		ON CONFLICT (title) DO UPDATE SET image=EXCLUDED.image`
	if _, err := r.Pool.Exec(ctx, q, c.Title, c.Image); err != nil {
		return fmt.Errorf("op=catalog.upsert_category: %w", err)
	}
	return nil
}

// UpsertCountry inserts or updates a country by ISO code. Seeding only.
func (r *CatalogRepo) UpsertCountry(ctx domain.Context, c domain.Country) error {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.UpsertCountry")
	defer span.End()
	q := `INSERT INTO country (title, code, is_active) VALUES ($1,$2,$3)
		ON CONFLICT (code) DO UPDATE SET title=EXCLUDED.title, is_active=EXCLUDED.is_active`
	if _, err := r.Pool.Exec(ctx, q, c.Title, c.Code, c.IsActive); err != nil {
		return fmt.Errorf("op=catalog.upsert_country: %w", err)
	}
	return nil
}

// UpsertReview inserts or updates a testimonial by (name, lang). Seeding only.
func (r *CatalogRepo) UpsertReview(ctx domain.Context, rv domain.Review) error {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.UpsertReview")
	defer span.End()
	q := `INSERT INTO review (name, photo, lang, text, sort, is_active) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (name, lang) DO UPDATE SET photo=EXCLUDED.photo, text=EXCLUDED.text,
			sort=EXCLUDED.sort, is_active=EXCLUDED.is_active`
	if _, err := r.Pool.Exec(ctx, q, rv.Name, rv.Photo, rv.Lang, rv.Text, rv.Sort, rv.IsActive); err != nil {
		return fmt.Errorf("op=catalog.upsert_review: %w", err)
	}
	return nil
}
