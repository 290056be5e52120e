package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rl1809/catalog-sync/internal/core/delta"
	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/core/service"
	"github.com/rl1809/catalog-sync/internal/logging"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type HTTPHandler struct {
	catalog *service.CatalogService
	logger  logging.Logger
}

func NewHTTPHandler(catalog *service.CatalogService, logger logging.Logger) *HTTPHandler {
	return &HTTPHandler{catalog: catalog, logger: logger.With("component", "http")}
}

// Routes builds the HTTP API. Mutations require an admin token signed with
// secret; reads are public.
func (h *HTTPHandler) Routes(secret string) http.Handler {
	mux := http.NewServeMux()
	admin := RequireAdmin(secret)

	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("GET /catalog/categories", h.ListCategories)
	mux.HandleFunc("GET /catalog/subcategories", h.ListSubcategories)
	mux.HandleFunc("GET /catalog/delta", h.Delta)

	mux.Handle("POST /catalog/{kind}", admin(http.HandlerFunc(h.CreateEntry)))
	mux.Handle("PUT /catalog/{kind}/{id}", admin(http.HandlerFunc(h.UpdateEntry)))
	mux.Handle("DELETE /catalog/{kind}/{id}", admin(http.HandlerFunc(h.DeleteEntry)))
	mux.Handle("PUT /sellers/{id}", admin(http.HandlerFunc(h.UpsertSeller)))
	mux.Handle("POST /admin/cache/flush", admin(http.HandlerFunc(h.FlushCache)))

	return RequestIDMiddleware(LoggingMiddleware(h.logger)(mux))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "ok", nil)
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userType, err := domain.ParseUserType(q.Get("userType"))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	list, err := h.catalog.ListCategories(r.Context(), service.CategoriesQuery{
		UserType: userType,
		Bypass:   bypassRequested(r),
	})
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, partialMsg(list.Partial), list)
}

func (h *HTTPHandler) ListSubcategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var query service.SubcategoriesQuery
	var err error

	if query.UserType, err = domain.ParseUserType(q.Get("userType")); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	if v := q.Get("categoryId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(r.Context(), w, h.logger, fmt.Errorf("%w: categoryId must be a positive integer", domain.ErrInvalidArgument))
			return
		}
		query.CategoryID = &id
	}
	if query.Page, err = positiveParam(q.Get("page"), "page"); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	if query.Limit, err = positiveParam(q.Get("limit"), "limit"); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	query.Bypass = bypassRequested(r)

	page, err := h.catalog.ListSubcategories(r.Context(), query)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, partialMsg(page.Partial), page)
}

func (h *HTTPHandler) Delta(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kinds, err := domain.ParseKindSet(q.Get("kind"))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	userType, err := domain.ParseUserType(q.Get("userType"))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	watermark, err := delta.ParseWatermark(q.Get("watermark"))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	res, err := h.catalog.Delta(r.Context(), service.DeltaQuery{
		Kinds:     kinds,
		UserType:  userType,
		Watermark: watermark,
	})
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, partialMsg(res.Partial), res)
}

func (h *HTTPHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	var in domain.EntryInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	entry, err := h.catalog.CreateEntry(r.Context(), kind, in)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "created", entry)
}

func (h *HTTPHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	kind, id, err := kindAndID(r)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	var in domain.EntryInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	entry, err := h.catalog.UpdateEntry(r.Context(), kind, id, in)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "updated", entry)
}

func (h *HTTPHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	kind, id, err := kindAndID(r)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	if err := h.catalog.DeleteEntry(r.Context(), kind, id); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "deleted", nil)
}

type sellerRequest struct {
	DelStatus   domain.DelStatus   `json:"delStatus"`
	SellerClass domain.SellerClass `json:"sellerClass"`
}

func (h *HTTPHandler) UpsertSeller(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	var req sellerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	rec := domain.SellerRecord{ID: id, DelStatus: req.DelStatus, SellerClass: req.SellerClass}
	if err := h.catalog.UpsertSeller(r.Context(), rec); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "saved", rec)
}

func (h *HTTPHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	if claims := GetClaims(r.Context()); claims != nil {
		h.logger.Info(r.Context(), "cache flush requested", "subject", claims.Subject)
	}
	h.catalog.FlushCache(r.Context())
	writeSuccess(w, http.StatusOK, "cache flushed", nil)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

func kindAndID(r *http.Request) (domain.Kind, int64, error) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		return "", 0, err
	}
	id, err := pathID(r)
	return kind, id, err
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", domain.ErrInvalidArgument)
	}
	return id, nil
}

// positiveParam parses an optional query parameter. Absent means zero, which
// the service treats as "use the default"; a present value must be >= 1.
func positiveParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", domain.ErrInvalidArgument, name, v)
	}
	return n, nil
}

func bypassRequested(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("bypass"))
	return v
}

func partialMsg(partial bool) string {
	if partial {
		return domain.ErrScanBudgetExceeded.Error()
	}
	return "ok"
}
