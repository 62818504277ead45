package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/goldstream/goldstream/internal/config"
	"github.com/goldstream/goldstream/internal/domain"
	"github.com/goldstream/goldstream/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg           config.Config
	Auth          usecase.AuthService
	Users         usecase.UserService
	Dreams        usecase.DreamService
	Donations     usecase.DonationService
	Currencies    usecase.CurrencyService
	Catalog       usecase.CatalogService
	Notifications usecase.NotificationService
	Operators     usecase.OperatorService
	Tokens        domain.TokenIssuer
	DBCheck       func(ctx context.Context) error
	RedisCheck    func(ctx context.Context) error
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// decodeJSON parses and validates a JSON request body.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed json body", domain.ErrInvalidArgument)
	}
	if err := getValidator().Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type pageParams struct {
	Number int
	Size   int
}

func (p pageParams) domain() domain.Page { return domain.Page{Number: p.Number, Size: p.Size} }

// pageFrom reads page/size query parameters with sane bounds.
func pageFrom(r *http.Request) pageParams {
	p := pageParams{Number: 1, Size: defaultPageSize}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		p.Number = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && v > 0 {
		p.Size = v
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad %s", domain.ErrInvalidArgument, param)
	}
	return id, nil
}
