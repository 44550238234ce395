package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/catalog"
	"storefront-catalog-service/internal/store"
)

// maxUploadBytes caps the in-memory portion of a multipart product request.
const maxUploadBytes = 32 << 20

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	catalog catalog.Service
	auth    auth.Service
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(catalogSvc catalog.Service, authSvc auth.Service) *HTTPHandler {
	return &HTTPHandler{
		catalog: catalogSvc,
		auth:    authSvc,
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("ERROR: Failed to encode JSON response: %v", err)
			http.Error(w, `{"error": "Internal server error during JSON encoding"}`, http.StatusInternalServerError)
		}
	}
}

// respondCatalogError maps the catalog/store error taxonomy onto HTTP codes.
func respondCatalogError(w http.ResponseWriter, op string, err error) {
	log.Printf("ERROR: %s failed: %v", op, err)
	switch {
	case errors.Is(err, catalog.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrUnauthorized):
		respondWithError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, store.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, catalog.ErrUploadFailed):
		respondWithError(w, http.StatusInternalServerError, "Image upload failed")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// --- Auth Handlers ---

// LoginInput defines the expected input for logging in.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	result, err := h.auth.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		log.Printf("ERROR: Login failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	// Response shape the storefront expects: token nested in the user object.
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user": map[string]interface{}{
			"id":      result.User.ID,
			"token":   result.Token,
			"email":   result.User.Email,
			"isAdmin": result.User.IsAdmin,
		},
	})
}

func (h *HTTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "No token provided")
		return
	}
	respondWithJSON(w, http.StatusOK, principal)
}

// --- Product Handlers ---

// productInputFromForm collects the scalar product fields of a parsed
// multipart form. Numeric/boolean parse failures surface as 400s here;
// presence and range validation belongs to the catalog service.
func productInputFromForm(r *http.Request) (catalog.ProductInput, error) {
	in := catalog.ProductInput{
		Name:           r.FormValue("name"),
		Category:       r.FormValue("category"),
		Description:    r.FormValue("description"),
		Brand:          r.FormValue("brand"),
		Specifications: r.FormValue("specifications"),
	}

	if v := r.FormValue("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return in, errors.New("Invalid price format")
		}
		in.Price = &price
	}
	if v := r.FormValue("originalPrice"); v != "" {
		original, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return in, errors.New("Invalid originalPrice format")
		}
		in.OriginalPrice = &original
	}
	if v := r.FormValue("inStock"); v != "" {
		inStock, err := strconv.ParseBool(v)
		if err != nil {
			return in, errors.New("Invalid inStock value: must be true or false")
		}
		in.InStock = &inStock
	}
	return in, nil
}

// imageSetFromForm opens the primary image and gallery files attached to the
// request. The returned closer must be deferred; the catalog service reads
// the files during upload, so they stay open for the duration of the call.
func imageSetFromForm(r *http.Request) (catalog.ImageSet, func(), error) {
	var images catalog.ImageSet
	var opened []io.Closer
	closeAll := func() {
		for _, c := range opened {
			c.Close()
		}
	}

	if r.MultipartForm == nil {
		return images, closeAll, nil
	}

	if headers := r.MultipartForm.File["image"]; len(headers) > 0 {
		f, err := headers[0].Open()
		if err != nil {
			closeAll()
			return images, func() {}, err
		}
		opened = append(opened, f)
		images.Primary = &catalog.ImageUpload{Filename: headers[0].Filename, Content: f}
	}

	for _, header := range r.MultipartForm.File["additionalImages"] {
		f, err := header.Open()
		if err != nil {
			closeAll()
			return images, func() {}, err
		}
		opened = append(opened, f)
		images.Gallery = append(images.Gallery, catalog.ImageUpload{Filename: header.Filename, Content: f})
	}

	return images, closeAll, nil
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart payload: "+err.Error())
		return
	}

	input, err := productInputFromForm(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	images, closeFiles, err := imageSetFromForm(r)
	if err != nil {
		log.Printf("ERROR: CreateProduct failed to open uploaded file: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to read uploaded files")
		return
	}
	defer closeFiles()

	created, err := h.catalog.Create(r.Context(), input, images, principal.IsAdmin)
	if err != nil {
		respondCatalogError(w, "CreateProduct", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	qParams := r.URL.Query()
	var params store.ListProductsParams

	if q := qParams.Get("q"); q != "" {
		params.SearchQuery = &q
	}
	if category := qParams.Get("category"); category != "" {
		params.Category = &category
	}
	if stockStr := qParams.Get("in_stock"); stockStr != "" {
		inStock, err := strconv.ParseBool(stockStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid in_stock value: must be true or false")
			return
		}
		params.InStock = &inStock
	}

	products, err := h.catalog.List(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: ListProducts failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := parseProductID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	product, err := h.catalog.Get(r.Context(), productID)
	if err != nil {
		respondCatalogError(w, "GetProduct", err)
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	productID, err := parseProductID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart payload: "+err.Error())
		return
	}

	input, err := productInputFromForm(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	images, closeFiles, err := imageSetFromForm(r)
	if err != nil {
		log.Printf("ERROR: UpdateProduct failed to open uploaded file: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to read uploaded files")
		return
	}
	defer closeFiles()

	updated, err := h.catalog.Update(r.Context(), productID, input, images, principal.IsAdmin)
	if err != nil {
		respondCatalogError(w, "UpdateProduct", err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	productID, err := parseProductID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	if err := h.catalog.Delete(r.Context(), productID, principal.IsAdmin); err != nil {
		respondCatalogError(w, "DeleteProduct", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully."})
}

// --- Derived Views ---

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		log.Printf("ERROR: ListCategories failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *HTTPHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		log.Printf("ERROR: GetStats failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve stats")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func parseProductID(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "productId")
	productID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || productID <= 0 {
		return 0, errors.New("invalid product id")
	}
	return productID, nil
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	requireAuth := RequireAuth(h.auth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.With(requireAuth).Get("/auth/verify", h.Verify)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.With(requireAuth).Post("/", h.CreateProduct)

			r.Route("/{productId}", func(r chi.Router) {
				r.Get("/", h.GetProduct)
				r.With(requireAuth).Put("/", h.UpdateProduct)
				r.With(requireAuth).Delete("/", h.DeleteProduct)
			})
		})

		r.Get("/categories", h.ListCategories)
		r.With(requireAuth).Get("/admin/stats", h.GetStats)
	})
}
