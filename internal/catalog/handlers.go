package catalog

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/backend-partyshop/internal/common"
)

// Handler serves the deduplicated product listing.
type Handler struct {
	service *Service
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

type listResponse struct {
	Data       []Listing         `json:"data"`
	Pagination common.Pagination `json:"pagination"`
}

// Products handles GET /products?q=&category=&in_stock=&sort=&page=&limit=.
// X-Total-Count carries the number of listings before paging.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "catalog is not configured", nil)
		return
	}
	params, err := h.service.ParseListParams(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.service.List(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	common.JSON(w, http.StatusOK, listResponse{
		Data:       result.Items,
		Pagination: common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: result.Total},
	})
}

func writeError(w http.ResponseWriter, err error) {
	if !common.WriteAppError(w, err) {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list products", nil)
	}
}
