package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goldstream/goldstream/internal/domain"
)

// seedFile mirrors deploy/seed.yaml: the reference data the service needs
// before the first request.
type seedFile struct {
	Currencies []struct {
		Code        string `yaml:"code"`
		Symbol      string `yaml:"symbol"`
		Name        string `yaml:"name"`
		Course      int64  `yaml:"course"`
		SortNumber  int    `yaml:"sort_number"`
		DreamLimit  int64  `yaml:"dream_limit"`
		DonateSizes []struct {
			Level int   `yaml:"level"`
			Size  int64 `yaml:"size"`
		} `yaml:"donate_sizes"`
	} `yaml:"currencies"`
	Categories []struct {
		Title string `yaml:"title"`
		Image string `yaml:"image"`
	} `yaml:"categories"`
	Countries []struct {
		Title string `yaml:"title"`
		Code  string `yaml:"code"`
	} `yaml:"countries"`
	Reviews []struct {
		Name string `yaml:"name"`
		Lang string `yaml:"lang"`
		Text string `yaml:"text"`
		Sort int    `yaml:"sort"`
	} `yaml:"reviews"`
	Operators []struct {
		Email       string `yaml:"email"`
		Name        string `yaml:"name"`
		Password    string `yaml:"password"`
		IsSuperuser bool   `yaml:"is_superuser"`
	} `yaml:"operators"`
}

type seeder struct {
	Currencies domain.CurrencyRepository
	Catalog    domain.CatalogRepository
	Operators  domain.OperatorRepository
	Hasher     domain.Hasher
}

// run applies the seed file idempotently. A missing file is not an error so
// production deployments can skip seeding entirely.
func (s seeder) run(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("op=seed.read: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("op=seed.parse: %w", err)
	}

	for _, c := range f.Currencies {
		id, err := s.Currencies.Upsert(ctx, domain.Currency{
			Code: c.Code, Symbol: c.Symbol, Name: c.Name, Course: c.Course,
			SortNumber: c.SortNumber, IsActive: true, DreamLimit: c.DreamLimit,
		})
		if err != nil {
			return err
		}
		for _, ds := range c.DonateSizes {
			err := s.Currencies.UpsertDonateSize(ctx, domain.DonateSize{CurrencyID: id, Level: ds.Level, Size: ds.Size})
			if err != nil {
				return err
			}
		}
	}
	for _, c := range f.Categories {
		if err := s.Catalog.UpsertCategory(ctx, domain.Category{Title: c.Title, Image: c.Image}); err != nil {
			return err
		}
	}
	for _, c := range f.Countries {
		if err := s.Catalog.UpsertCountry(ctx, domain.Country{Title: c.Title, Code: c.Code, IsActive: true}); err != nil {
			return err
		}
	}
	for _, r := range f.Reviews {
		if err := s.Catalog.UpsertReview(ctx, domain.Review{Name: r.Name, Lang: r.Lang, Text: r.Text, Sort: r.Sort, IsActive: true}); err != nil {
			return err
		}
	}
	for _, op := range f.Operators {
		hash, err := s.Hasher.Hash(op.Password)
		if err != nil {
			return err
		}
		err = s.Operators.Upsert(ctx, domain.Operator{
			Email: op.Email, Name: op.Name, Password: hash, IsSuperuser: op.IsSuperuser,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
