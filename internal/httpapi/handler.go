// Package httpapi exposes the registry, license, and marketplace services as
// a JSON API. Caller identity arrives in the X-Principal header; key custody
// and authentication live outside this process.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blockassets/marketplace/core"
	"github.com/blockassets/marketplace/license"
	"github.com/blockassets/marketplace/marketplace"
	"github.com/blockassets/marketplace/pkg/clarity"
	"github.com/blockassets/marketplace/pkg/logger"
	"github.com/blockassets/marketplace/pkg/metrics"
	"github.com/blockassets/marketplace/pkg/sip018"
	"github.com/blockassets/marketplace/registry"
)

const principalHeader = "X-Principal"

// Handler bundles the HTTP endpoints.
type Handler struct {
	registry *registry.Service
	licenses *license.Service
	market   *marketplace.Service
	log      *logger.Logger
}

// New constructs a handler over the three services.
func New(reg *registry.Service, lic *license.Service, market *marketplace.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{registry: reg, licenses: lic, market: market, log: log}
}

// Router builds the chi router with the standard middleware chain.
func (h *Handler) Router(ratePerSecond float64, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(h.logRequests)
	r.Use(newRateLimiter(ratePerSecond, burst).handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/sale-assets", func(r chi.Router) {
		r.Post("/", h.registerSaleAsset)
		r.Get("/", h.listSaleAssets)
		r.Get("/{id}", h.getSaleAsset)
		r.Post("/{id}/disable", h.disableSaleAsset)
		r.Post("/{id}/buy", h.buySaleAsset)
	})

	r.Route("/license-assets", func(r chi.Router) {
		r.Post("/", h.registerLicenseAsset)
		r.Get("/", h.listLicenseAssets)
		r.Get("/{id}", h.getLicenseAsset)
		r.Post("/{id}/disable", h.disableLicenseAsset)
	})

	r.Route("/license-requests", func(r chi.Router) {
		r.Post("/", h.requestLicense)
		r.Get("/", h.listLicenseRequests)
		r.Get("/{id}", h.getLicenseRequest)
		r.Post("/{id}/approve", h.approveLicenseRequest)
		r.Post("/{id}/claim", h.claimLicense)
	})

	r.Route("/licenses", func(r chi.Router) {
		r.Post("/", h.grantLicense)
		r.Get("/{assetID}/{licensee}", h.getLicense)
		r.Delete("/{assetID}/{licensee}", h.revokeLicense)
		r.Post("/{assetID}/use", h.useLicensedAsset)
	})

	return r
}

func (h *Handler) registerSaleAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	var payload struct {
		Name        string `json:"name"`
		MetadataURI string `json:"metadata_uri"`
		Price       uint64 `json:"price"`
		Quantity    uint32 `json:"quantity"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	asset, err := h.market.RegisterSaleAsset(r.Context(), caller, payload.Name, payload.MetadataURI, payload.Price, payload.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (h *Handler) listSaleAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.registry.ListSaleAssets(r.Context(), queryLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *Handler) getSaleAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	asset, err := h.registry.GetSaleAsset(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) disableSaleAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	asset, err := h.market.DisableSaleAsset(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) buySaleAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	asset, err := h.market.BuySaleAsset(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) registerLicenseAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	var payload struct {
		Name        string `json:"name"`
		MetadataURI string `json:"metadata_uri"`
		Price       uint64 `json:"price"`
		Duration    uint64 `json:"duration"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	asset, err := h.market.RegisterLicenseAsset(r.Context(), caller, payload.Name, payload.MetadataURI, payload.Price, payload.Duration)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (h *Handler) listLicenseAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.registry.ListLicenseAssets(r.Context(), queryLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *Handler) getLicenseAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	asset, err := h.registry.GetLicenseAsset(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) disableLicenseAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	asset, err := h.market.DisableLicenseAsset(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) requestLicense(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	var payload struct {
		AssetID uint64 `json:"asset_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := h.market.RequestLicense(r.Context(), caller, payload.AssetID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) listLicenseRequests(w http.ResponseWriter, r *http.Request) {
	assetID, err := strconv.ParseUint(r.URL.Query().Get("asset_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("asset_id query parameter is required"))
		return
	}
	reqs, err := h.licenses.ListRequests(r.Context(), assetID, queryLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *Handler) getLicenseRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, err := h.licenses.GetRequest(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) approveLicenseRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, err := h.market.ApproveRequest(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) claimLicense(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	grant, err := h.market.ClaimLicense(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

func (h *Handler) grantLicense(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AssetID   uint64            `json:"asset_id"`
		Licensee  clarity.Principal `json:"licensee"`
		Signature string            `json:"signature"`
		RSV       bool              `json:"rsv"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sig, err := hex.DecodeString(payload.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("signature must be hex: %w", err))
		return
	}
	if payload.RSV {
		if sig, err = sip018.FromRSV(sig); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	grant, err := h.market.GrantLicense(r.Context(), payload.AssetID, payload.Licensee, sig)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

func (h *Handler) getLicense(w http.ResponseWriter, r *http.Request) {
	assetID, ok := pathID(w, r, "assetID")
	if !ok {
		return
	}
	licensee, err := clarity.ParsePrincipal(chi.URLParam(r, "licensee"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	licensed := h.licenses.IsLicensed(r.Context(), assetID, licensee)
	response := struct {
		Licensed bool           `json:"licensed"`
		Grant    *license.Grant `json:"grant,omitempty"`
	}{Licensed: licensed}
	if grant, err := h.licenses.GetGrant(r.Context(), assetID, licensee); err == nil {
		response.Grant = &grant
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) revokeLicense(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	assetID, ok := pathID(w, r, "assetID")
	if !ok {
		return
	}
	licensee, err := clarity.ParsePrincipal(chi.URLParam(r, "licensee"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	grant, err := h.market.RevokeLicense(r.Context(), caller, assetID, licensee)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (h *Handler) useLicensedAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	assetID, ok := pathID(w, r, "assetID")
	if !ok {
		return
	}
	if err := h.market.UseLicensedAsset(r.Context(), caller, assetID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"access": true})
}

func callerPrincipal(w http.ResponseWriter, r *http.Request) (clarity.Principal, bool) {
	raw := r.Header.Get(principalHeader)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("%s header is required", principalHeader))
		return clarity.Principal{}, false
	}
	p, err := clarity.ParsePrincipal(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return clarity.Principal{}, false
	}
	return p, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid %s: %w", name, err))
		return 0, false
	}
	return id, true
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// writeServiceError maps the error taxonomy to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case core.IsNotFound(err):
		status = http.StatusNotFound
	case core.IsNotAuthorized(err):
		status = http.StatusForbidden
	case core.IsConflict(err):
		status = http.StatusConflict
	case errors.Is(err, core.ErrPaymentFailed):
		status = http.StatusPaymentRequired
	}
	writeError(w, status, err)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
