package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-partyshop/internal/cache"
	"github.com/noah-isme/backend-partyshop/internal/common"
)

// Source reads raw product rows for the tenant in context.
type Source interface {
	ListProducts(ctx context.Context, filter Filter) ([]Product, error)
}

// Filter narrows the rows read from the source.
type Filter struct {
	Query    string
	Category string
	InStock  *bool
}

// Service orchestrates catalog reads, de-duplication and caching.
type Service struct {
	source       Source
	cache        *cache.JSON
	logger       zerolog.Logger
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Source       Source
	Cache        *cache.JSON
	Logger       zerolog.Logger
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Filter
	Sort  string
	Page  int
	Limit int
}

// ListResult is one page of deduplicated listings.
type ListResult struct {
	Items []Listing
	Total int
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, errors.New("catalog: product source is required")
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 24
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		source:       cfg.Source,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(limit, s.maxLimit)
	}
	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return params, badRequest("inStock", "inStock must be true or false", err)
		}
		params.InStock = &b
	}
	params.Sort = normalizeSort(values.Get("sort"))
	return params, nil
}

// List returns one page of deduplicated products. The deduplicated set per
// filter is cached; sorting and paging happen on the cached copy.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = s.defaultLimit
	}
	listings, err := s.listings(ctx, params.Filter)
	if err != nil {
		return ListResult{}, err
	}
	sortListings(listings, params.Sort)

	out := ListResult{Total: len(listings), Page: params.Page, Limit: params.Limit, Items: []Listing{}}
	start := (params.Page - 1) * params.Limit
	if start < len(listings) {
		end := min(start+params.Limit, len(listings))
		out.Items = listings[start:end]
	}
	return out, nil
}

func (s *Service) listings(ctx context.Context, f Filter) ([]Listing, error) {
	key := cache.KeyCatalogList(ctx, filterDigest(f))
	var cached []Listing
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read")
	} else if ok {
		return cached, nil
	}
	rows, err := s.source.ListProducts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	listings := Dedupe(rows)
	if err := s.cache.Set(ctx, key, listings); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write")
	}
	return listings, nil
}

func filterDigest(f Filter) string {
	stock := "any"
	if f.InStock != nil {
		stock = strconv.FormatBool(*f.InStock)
	}
	return common.Sha256Hex(strings.ToLower(f.Query) + "\x00" + strings.ToLower(f.Category) + "\x00" + stock)[:16]
}

func sortListings(items []Listing, by string) {
	switch by {
	case "price:asc":
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price < items[j].Price })
	case "price:desc":
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price > items[j].Price })
	case "name:desc":
		sort.SliceStable(items, func(i, j int) bool { return strings.ToLower(items[i].Name) > strings.ToLower(items[j].Name) })
	default:
		sort.SliceStable(items, func(i, j int) bool { return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name) })
	}
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", value)
	}
}

func normalizeSort(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "price:asc", "price:desc", "name:asc", "name:desc":
		return s
	default:
		return "name:asc"
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
