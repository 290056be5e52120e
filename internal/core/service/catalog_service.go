package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rl1809/catalog-sync/internal/core/availability"
	"github.com/rl1809/catalog-sync/internal/core/cache"
	"github.com/rl1809/catalog-sync/internal/core/delta"
	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/core/scan"
	"github.com/rl1809/catalog-sync/internal/logging"
	"github.com/rl1809/catalog-sync/internal/port"
)

// Cache namespaces. Every key the service writes is derived from one of these.
const (
	NamespaceCategories    = "categories"
	NamespaceSubcategories = "subcategories"
	NamespaceAvailability  = "availability"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage matches the default scan ceiling at a page size of one.
	MaxPage = 10000
)

// AllNamespaces lists every namespace a flush must clear.
var AllNamespaces = []string{NamespaceCategories, NamespaceSubcategories, NamespaceAvailability}

var liveOnly = port.Filter{{Field: "deleted", Value: false}}

type Options struct {
	Ceiling      int
	BufferWindow time.Duration
}

// CatalogService serves catalog reads through the cache and keeps the cache
// coherent on writes. Every write invalidates before it returns.
type CatalogService struct {
	store     port.ScanStore
	cache     *cache.Manager
	paginator *scan.Paginator
	delta     *delta.Engine
	clock     port.Clock
	ceiling   int
	logger    logging.Logger
}

func NewCatalogService(store port.ScanStore, cacheManager *cache.Manager, clock port.Clock, opts Options, logger logging.Logger) *CatalogService {
	logger = logger.With("component", "catalog")
	return &CatalogService{
		store:     store,
		cache:     cacheManager,
		paginator: scan.NewPaginator(store, opts.Ceiling, logger),
		delta:     delta.NewEngine(store, clock, delta.Options{BufferWindow: opts.BufferWindow, Ceiling: opts.Ceiling}, logger),
		clock:     clock,
		ceiling:   opts.Ceiling,
		logger:    logger,
	}
}

type CategoriesQuery struct {
	UserType domain.UserType
	// Bypass forces a fresh read from the store, for diagnostics.
	Bypass bool
}

type SubcategoriesQuery struct {
	CategoryID *int64
	UserType   domain.UserType
	Page       int
	Limit      int
	Bypass     bool
}

type DeltaQuery struct {
	Kinds     []domain.Kind
	UserType  domain.UserType
	Watermark *time.Time
}

// ListCategories returns every live category with availability joined on.
func (s *CatalogService) ListCategories(ctx context.Context, q CategoriesQuery) (*domain.CategoryList, error) {
	userType, err := normalizeUserType(q.UserType)
	if err != nil {
		return nil, err
	}

	key := cache.KeyFor(NamespaceCategories, map[string]string{"userType": string(userType)})
	list, _, err := cache.ReadThrough(ctx, s.cache, key, cache.TierStatic, q.Bypass, func(ctx context.Context) (domain.CategoryList, bool, error) {
		flags, err := s.Availability(ctx, false)
		if err != nil {
			return domain.CategoryList{}, false, err
		}
		if !flags.Allows(userType) {
			return domain.CategoryList{Items: []domain.CatalogItem{}}, true, nil
		}

		it := scan.NewIterator(s.store, domain.KindCategory.Table(), liveOnly, s.ceiling, s.logger)
		recs, err := it.All(ctx)
		if err != nil {
			return domain.CategoryList{}, false, err
		}
		entries, err := scan.DecodeEntries(recs)
		if err != nil {
			return domain.CategoryList{}, false, err
		}

		// A truncated listing is a lower bound and is not worth a day in the cache.
		return domain.CategoryList{
			Items:   withAvailability(entries, flags),
			Partial: it.Truncated(),
		}, !it.Truncated(), nil
	})
	if err != nil {
		s.logger.Error(ctx, "list categories failed", "error", err)
		return nil, err
	}
	return &list, nil
}

// ListSubcategories pages through live subcategories, optionally those of one
// category. Only the bare query shape (no page, limit or category) is cached
// in the static tier; every other shape uses the long tier.
func (s *CatalogService) ListSubcategories(ctx context.Context, q SubcategoriesQuery) (*domain.Page, error) {
	userType, err := normalizeUserType(q.UserType)
	if err != nil {
		return nil, err
	}
	if q.Page < 0 || q.Page > MaxPage {
		return nil, fmt.Errorf("%w: page must be between 1 and %d, got %d", domain.ErrInvalidArgument, MaxPage, q.Page)
	}
	if q.Limit < 0 || q.Limit > MaxPageSize {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d, got %d", domain.ErrInvalidArgument, MaxPageSize, q.Limit)
	}

	params := map[string]string{"userType": string(userType)}
	tier := cache.TierStatic
	page, limit := 1, DefaultPageSize
	filter := liveOnly
	if q.Page > 0 {
		page = q.Page
		params["page"] = strconv.Itoa(q.Page)
		tier = cache.TierLong
	}
	if q.Limit > 0 {
		limit = q.Limit
		params["limit"] = strconv.Itoa(q.Limit)
		tier = cache.TierLong
	}
	if q.CategoryID != nil {
		params["categoryId"] = strconv.FormatInt(*q.CategoryID, 10)
		filter = append(port.Filter{{Field: "parentId", Value: *q.CategoryID}}, liveOnly...)
		tier = cache.TierLong
	}

	key := cache.KeyFor(NamespaceSubcategories, params)
	res, _, err := cache.ReadThrough(ctx, s.cache, key, tier, q.Bypass, func(ctx context.Context) (domain.Page, bool, error) {
		flags, err := s.Availability(ctx, false)
		if err != nil {
			return domain.Page{}, false, err
		}
		if !flags.Allows(userType) {
			return domain.Page{Items: []domain.CatalogItem{}, Page: page, PageSize: limit}, true, nil
		}

		r, err := s.paginator.Paginate(ctx, domain.KindSubcategory.Table(), page, limit, filter)
		if err != nil {
			return domain.Page{}, false, err
		}
		return domain.Page{
			Items:      withAvailability(r.Entries, flags),
			Total:      r.Total,
			Page:       r.Page,
			PageSize:   r.PageSize,
			TotalPages: r.TotalPages,
			HasMore:    r.HasMore,
			Partial:    r.Partial,
		}, !r.Partial, nil
	})
	if err != nil {
		s.logger.Error(ctx, "list subcategories failed", "error", err)
		return nil, err
	}
	return &res, nil
}

// Delta is never cached: a cached delta served under the wrong watermark would
// desynchronize clients. Any failure fails the whole call with ErrSyncUnavailable.
func (s *CatalogService) Delta(ctx context.Context, q DeltaQuery) (*domain.DeltaResponse, error) {
	userType, err := normalizeUserType(q.UserType)
	if err != nil {
		return nil, err
	}
	kinds := q.Kinds
	if len(kinds) == 0 {
		kinds = domain.Kinds
	}

	flags, err := s.Availability(ctx, false)
	if err != nil {
		s.logger.Error(ctx, "delta availability failed", "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrSyncUnavailable, err)
	}

	res, err := s.delta.DeltaAll(ctx, kinds, q.Watermark)
	if err != nil {
		return nil, err
	}

	out := &domain.DeltaResponse{
		NewWatermark: res.NewWatermark,
		Partial:      res.Partial,
	}
	for kind, kd := range res.Kinds {
		set := &domain.DeltaSet{
			Changed:    []domain.CatalogItem{},
			Tombstones: kd.Tombstones,
		}
		if flags.Allows(userType) {
			set.Changed = withAvailability(kd.Changed, flags)
		}
		switch kind {
		case domain.KindCategory:
			out.Categories = set
		case domain.KindSubcategory:
			out.Subcategories = set
		}
	}
	return out, nil
}

// Availability classifies a full seller snapshot. The result is cached in the
// short tier under its own namespace; seller writes invalidate it.
func (s *CatalogService) Availability(ctx context.Context, bypass bool) (domain.AvailabilityFlags, error) {
	flags, _, err := cache.ReadThrough(ctx, s.cache, NamespaceAvailability, cache.TierShort, bypass, func(ctx context.Context) (domain.AvailabilityFlags, bool, error) {
		it := scan.NewIterator(s.store, domain.SellersTable, nil, s.ceiling, s.logger)
		recs, err := it.All(ctx)
		if err != nil {
			return domain.AvailabilityFlags{}, false, err
		}
		sellers, err := scan.DecodeSellers(recs)
		if err != nil {
			return domain.AvailabilityFlags{}, false, err
		}
		flags := availability.Classify(sellers)
		// Flags from a truncated scan can only be false negatives.
		return flags, !it.Truncated() || (flags.B2B && flags.B2C), nil
	})
	return flags, err
}

// CreateEntry stores a new entry. Subcategories must name a live parent
// category; categories must not name a parent.
func (s *CatalogService) CreateEntry(ctx context.Context, kind domain.Kind, in domain.EntryInput) (*domain.CatalogEntry, error) {
	if err := s.validateInput(ctx, kind, &in); err != nil {
		return nil, err
	}

	id, err := s.store.NextID(ctx, kind.Table())
	if err != nil {
		return nil, s.storeFailure(ctx, "allocate id", kind, err)
	}

	now := s.clock.Now()
	entry := domain.CatalogEntry{
		ID:        id,
		Name:      in.Name,
		Image:     in.Image,
		ParentID:  in.ParentID,
		PriceHint: in.PriceHint,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, kind.Table(), id, entry); err != nil {
		return nil, s.storeFailure(ctx, "create entry", kind, err)
	}

	s.invalidateKind(ctx, kind)
	s.logger.Info(ctx, "entry created", "kind", kind, "id", id)
	return &entry, nil
}

// UpdateEntry rewrites the mutable fields of a live entry.
func (s *CatalogService) UpdateEntry(ctx context.Context, kind domain.Kind, id int64, in domain.EntryInput) (*domain.CatalogEntry, error) {
	if err := s.validateInput(ctx, kind, &in); err != nil {
		return nil, err
	}

	entry, err := s.liveEntry(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	entry.Name = in.Name
	entry.Image = in.Image
	entry.ParentID = in.ParentID
	entry.PriceHint = in.PriceHint
	entry.Touch(s.clock.Now())

	if err := s.store.Put(ctx, kind.Table(), id, entry); err != nil {
		return nil, s.storeFailure(ctx, "update entry", kind, err)
	}

	s.invalidateKind(ctx, kind)
	s.logger.Info(ctx, "entry updated", "kind", kind, "id", id)
	return entry, nil
}

// DeleteEntry soft-deletes an entry. Deleting a tombstone is a no-op.
func (s *CatalogService) DeleteEntry(ctx context.Context, kind domain.Kind, id int64) error {
	entry, err := s.getEntry(ctx, kind, id)
	if err != nil {
		return err
	}
	if entry.Deleted {
		return nil
	}

	entry.MarkDeleted(s.clock.Now())
	if err := s.store.Put(ctx, kind.Table(), id, entry); err != nil {
		return s.storeFailure(ctx, "delete entry", kind, err)
	}

	s.invalidateKind(ctx, kind)
	s.logger.Info(ctx, "entry deleted", "kind", kind, "id", id)
	return nil
}

// UpsertSeller writes a seller record. Availability feeds every listing, so
// every namespace is invalidated.
func (s *CatalogService) UpsertSeller(ctx context.Context, rec domain.SellerRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := s.store.Put(ctx, domain.SellersTable, rec.ID, rec); err != nil {
		err = domain.TagStoreError(err)
		s.logger.Error(ctx, "upsert seller failed", "id", rec.ID, "error", err)
		return err
	}

	s.cache.InvalidateNamespace(ctx, AllNamespaces...)
	s.logger.Info(ctx, "seller upserted", "id", rec.ID, "class", rec.SellerClass, "status", rec.DelStatus)
	return nil
}

// FlushCache drops every cached view. Always safe: reads repopulate from the store.
func (s *CatalogService) FlushCache(ctx context.Context) {
	s.cache.InvalidateNamespace(ctx, AllNamespaces...)
	s.logger.Info(ctx, "cache flushed", "namespaces", AllNamespaces)
}

func (s *CatalogService) invalidateKind(ctx context.Context, kind domain.Kind) {
	switch kind {
	case domain.KindCategory:
		s.cache.InvalidateNamespace(ctx, NamespaceCategories)
	case domain.KindSubcategory:
		s.cache.InvalidateNamespace(ctx, NamespaceSubcategories)
	}
}

func (s *CatalogService) validateInput(ctx context.Context, kind domain.Kind, in *domain.EntryInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidArgument)
	}

	switch kind {
	case domain.KindCategory:
		if in.ParentID != nil {
			return fmt.Errorf("%w: categories cannot have a parent", domain.ErrInvalidArgument)
		}
	case domain.KindSubcategory:
		if in.ParentID == nil {
			return fmt.Errorf("%w: parentId is required for subcategories", domain.ErrInvalidArgument)
		}
		if _, err := s.liveEntry(ctx, domain.KindCategory, *in.ParentID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: parent category %d does not exist", domain.ErrInvalidArgument, *in.ParentID)
			}
			return err
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidArgument, kind)
	}
	return nil
}

func (s *CatalogService) getEntry(ctx context.Context, kind domain.Kind, id int64) (*domain.CatalogEntry, error) {
	rec, err := s.store.Get(ctx, kind.Table(), id)
	if err != nil {
		return nil, s.storeFailure(ctx, "get entry", kind, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s %d", domain.ErrNotFound, kind, id)
	}
	var entry domain.CatalogEntry
	if err := rec.Decode(&entry); err != nil {
		return nil, fmt.Errorf("decoding %s %d: %w", kind, id, err)
	}
	return &entry, nil
}

func (s *CatalogService) liveEntry(ctx context.Context, kind domain.Kind, id int64) (*domain.CatalogEntry, error) {
	entry, err := s.getEntry(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if entry.Deleted {
		return nil, fmt.Errorf("%w: %s %d", domain.ErrNotFound, kind, id)
	}
	return entry, nil
}

func (s *CatalogService) storeFailure(ctx context.Context, op string, kind domain.Kind, err error) error {
	err = domain.TagStoreError(err)
	s.logger.Error(ctx, op+" failed", "kind", kind, "error", err)
	return err
}

func withAvailability(entries []domain.CatalogEntry, flags domain.AvailabilityFlags) []domain.CatalogItem {
	items := make([]domain.CatalogItem, len(entries))
	for i, e := range entries {
		items[i] = domain.CatalogItem{CatalogEntry: e, AvailableIn: flags}
	}
	return items
}

func normalizeUserType(u domain.UserType) (domain.UserType, error) {
	return domain.ParseUserType(string(u))
}
