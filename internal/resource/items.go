package resource

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/and161185/bookly/internal/cache"
	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/model"
	"github.com/and161185/bookly/internal/validate"
)

// Default page parameters for item listings.
const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// Items is the item resource family.
type Items struct {
	base
	v *validate.Validator
}

// NewItems returns the item service. A nil cache disables caching.
func NewItems(api API, c cache.Cache, log *zap.Logger) *Items {
	return &Items{base: newBase(api, c, log), v: validate.New()}
}

// ItemsKey is the invalidation scope of every item query.
func ItemsKey() cache.Key { return cache.K(rootItems) }

// ItemKey is the cache key of one item.
func ItemKey(id model.ID) cache.Key { return cache.K(rootItems, id.String()) }

// ItemsPageKey is the cache key of one listing page.
func ItemsPageKey(page, limit int) cache.Key {
	return cache.K(rootItems, "list", strconv.Itoa(page), strconv.Itoa(limit))
}

// List returns one page of the caller's items.
func (s *Items) List(ctx context.Context, page, limit int) (model.Page[model.Item], error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return cached(ctx, s.base, ItemsPageKey(page, limit), func(ctx context.Context) (model.Page[model.Item], error) {
		var out model.Page[model.Item]
		q := url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(limit)}}
		err := s.api.Get(ctx, "/items", q, &out)
		return out, err
	})
}

// Get returns a single item.
func (s *Items) Get(ctx context.Context, id model.ID) (model.Item, error) {
	if id == "" {
		return model.Item{}, errs.NewValidationError("id", "is required")
	}
	return cached(ctx, s.base, ItemKey(id), func(ctx context.Context) (model.Item, error) {
		var out model.Item
		err := s.api.Get(ctx, "/items/"+url.PathEscape(id.String()), nil, &out)
		return out, err
	})
}

// Create validates in, normalizes its tags and creates the item.
func (s *Items) Create(ctx context.Context, in model.CreateItemInput) (model.Item, error) {
	in.Tags = model.NormalizeTags(in.Tags)
	if err := s.v.Struct(in); err != nil {
		return model.Item{}, err
	}
	var out model.Item
	if err := s.api.Post(ctx, "/items", in, &out); err != nil {
		return model.Item{}, err
	}
	return out, s.invalidate(ctx, ItemsKey())
}

// Update applies a partial update. Nil fields are left unchanged.
func (s *Items) Update(ctx context.Context, id model.ID, in model.UpdateItemInput) (model.Item, error) {
	if id == "" {
		return model.Item{}, errs.NewValidationError("id", "is required")
	}
	if in.Empty() {
		return model.Item{}, errs.NewValidationError("input", "no fields to update")
	}
	if in.Tags != nil {
		tags := model.NormalizeTags(*in.Tags)
		if tags == nil {
			tags = []string{}
		}
		in.Tags = &tags
	}
	if err := s.v.Struct(in); err != nil {
		return model.Item{}, err
	}
	var out model.Item
	if err := s.api.Put(ctx, "/items/"+url.PathEscape(id.String()), in, &out); err != nil {
		return model.Item{}, err
	}
	return out, s.invalidate(ctx, ItemsKey(), ItemKey(id))
}

// Delete removes an item.
func (s *Items) Delete(ctx context.Context, id model.ID) error {
	if id == "" {
		return errs.NewValidationError("id", "is required")
	}
	if err := s.api.Delete(ctx, "/items/"+url.PathEscape(id.String())); err != nil {
		return err
	}
	return s.invalidate(ctx, ItemsKey())
}
