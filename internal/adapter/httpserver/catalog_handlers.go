package httpserver

import (
	"net/http"
)

// CategoriesHandler returns all dream categories.
func (s *Server) CategoriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := s.Catalog.Categories(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, categories)
	}
}

// CountriesHandler returns the active countries.
func (s *Server) CountriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		countries, err := s.Catalog.Countries(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, countries)
	}
}

func langFrom(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); len(lang) == 2 {
		return lang
	}
	return "en"
}

// PostsHandler pages published posts for a language.
func (s *Server) PostsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := pageFrom(r)
		posts, total, err := s.Catalog.Posts(r.Context(), langFrom(r), p.domain())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeList(w, posts, total, p)
	}
}

// PostHandler returns one published post.
func (s *Server) PostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		post, err := s.Catalog.Post(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

// ReviewsHandler pages the landing testimonials for a language.
func (s *Server) ReviewsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := pageFrom(r)
		reviews, total, err := s.Catalog.Reviews(r.Context(), langFrom(r), p.domain())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeList(w, reviews, total, p)
	}
}

// CurrenciesHandler pages the active currencies.
func (s *Server) CurrenciesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := pageFrom(r)
		currencies, total, err := s.Currencies.List(r.Context(), p.domain())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]currencyResponse, 0, len(currencies))
		for _, c := range currencies {
			out = append(out, toCurrencyResponse(c))
		}
		writeList(w, out, total, p)
	}
}

// DonateSizesHandler returns the referral donation amounts for a currency.
func (s *Server) DonateSizesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		sizes, err := s.Currencies.DonateSizes(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sizes)
	}
}
