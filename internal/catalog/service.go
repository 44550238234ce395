package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/store"
)

// MaxGalleryImages bounds the additionalImages sequence at the service
// boundary; the store itself does not enforce it.
const MaxGalleryImages = 5

// Predefined errors for catalog operations
var (
	ErrUnauthorized = errors.New("catalog: admin privileges required")
	ErrInvalidInput = errors.New("catalog: invalid input")
	ErrUploadFailed = errors.New("catalog: image upload failed")
)

// Uploader is the blob store contract: a stable URL or an error, nothing in
// between. See internal/blob for the local implementation.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// ListCache is the optional read cache for the unfiltered product list.
// Cache errors are logged and absorbed, never surfaced to callers.
type ListCache interface {
	GetProductList(ctx context.Context) ([]domain.Product, error)
	SetProductList(ctx context.Context, products []domain.Product) error
	Invalidate(ctx context.Context) error
}

// ImageUpload is one raw image file handed in by the transport layer.
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

// ImageSet bundles the optional primary image and the gallery files of a
// create/update request. Gallery order is preserved through upload.
type ImageSet struct {
	Primary *ImageUpload
	Gallery []ImageUpload
}

// ProductInput carries the scalar product fields of a multipart request.
// Specifications arrives as serialized JSON and is parsed by the service.
// The validate tags apply to create; update is a full-replace write where
// zero values overwrite (partial-field preservation is not guaranteed).
type ProductInput struct {
	Name           string   `validate:"required,max=255"`
	Category       string   `validate:"required,max=255"`
	Price          *float64 `validate:"required,gte=0"`
	OriginalPrice  *float64 `validate:"omitempty,gte=0"`
	Description    string
	Brand          string
	InStock        *bool
	Specifications string
}

// Service is the catalog core: it validates and normalizes product payloads,
// orchestrates blob uploads before persistence, and derives the read-side
// views. Every mutating operation takes a pre-verified callerIsAdmin flag;
// the service never inspects credentials itself.
type Service interface {
	Create(ctx context.Context, in ProductInput, images ImageSet, callerIsAdmin bool) (*domain.Product, error)
	Update(ctx context.Context, id int64, in ProductInput, images ImageSet, callerIsAdmin bool) (*domain.Product, error)
	Delete(ctx context.Context, id int64, callerIsAdmin bool) error
	List(ctx context.Context, params store.ListProductsParams) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*domain.CatalogStats, error)
}

type productService struct {
	products store.ProductStorer
	uploader Uploader
	cache    ListCache // may be nil when no Redis is configured
	validate *validator.Validate
}

// NewService creates the catalog service. cache may be nil to disable the
// product-list cache.
func NewService(products store.ProductStorer, uploader Uploader, cache ListCache) Service {
	return &productService{
		products: products,
		uploader: uploader,
		cache:    cache,
		validate: validator.New(),
	}
}

// ParseSpecifications parses the serialized specifications field into a flat
// string-to-string map. Duplicate keys resolve last-write-wins, as JSON
// decoding does. An empty payload yields a nil map; anything that is not a
// flat string object fails with ErrInvalidInput.
func ParseSpecifications(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	specs := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil, fmt.Errorf("%w: malformed specifications", ErrInvalidInput)
	}
	return specs, nil
}

func (s *productService) Create(ctx context.Context, in ProductInput, images ImageSet, callerIsAdmin bool) (*domain.Product, error) {
	if !callerIsAdmin {
		return nil, ErrUnauthorized
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// Specifications must parse before anything is uploaded or persisted;
	// a malformed payload never produces a partial save.
	specs, err := ParseSpecifications(in.Specifications)
	if err != nil {
		return nil, err
	}
	if len(images.Gallery) > MaxGalleryImages {
		return nil, fmt.Errorf("%w: at most %d gallery images allowed", ErrInvalidInput, MaxGalleryImages)
	}

	imageURL, galleryURLs, err := s.uploadImages(ctx, images)
	if err != nil {
		return nil, err
	}

	product := &domain.Product{
		Name:             in.Name,
		Category:         in.Category,
		Price:            *in.Price,
		OriginalPrice:    in.OriginalPrice,
		Image:            imageURL,
		AdditionalImages: galleryURLs,
		Description:      in.Description,
		Brand:            in.Brand,
		InStock:          in.InStock != nil && *in.InStock,
		Specifications:   specs,
	}

	created, err := s.products.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return created, nil
}

func (s *productService) Update(ctx context.Context, id int64, in ProductInput, images ImageSet, callerIsAdmin bool) (*domain.Product, error) {
	if !callerIsAdmin {
		return nil, ErrUnauthorized
	}

	existing, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Price != nil && *in.Price < 0 {
		return nil, fmt.Errorf("%w: price must be non-negative", ErrInvalidInput)
	}
	if in.OriginalPrice != nil && *in.OriginalPrice < 0 {
		return nil, fmt.Errorf("%w: originalPrice must be non-negative", ErrInvalidInput)
	}
	specs, err := ParseSpecifications(in.Specifications)
	if err != nil {
		return nil, err
	}
	if len(images.Gallery) > MaxGalleryImages {
		return nil, fmt.Errorf("%w: at most %d gallery images allowed", ErrInvalidInput, MaxGalleryImages)
	}

	imageURL, galleryURLs, err := s.uploadImages(ctx, images)
	if err != nil {
		return nil, err
	}

	// Full-replace semantics for scalar fields: payload values win even when
	// zero-valued. Images keep their prior values unless new files arrived;
	// a non-empty gallery replaces the whole prior sequence, never merges.
	updated := &domain.Product{
		ID:               id,
		Name:             in.Name,
		Category:         in.Category,
		OriginalPrice:    in.OriginalPrice,
		Image:            existing.Image,
		AdditionalImages: existing.AdditionalImages,
		Description:      in.Description,
		Brand:            in.Brand,
		InStock:          in.InStock != nil && *in.InStock,
		Specifications:   specs,
		Rating:           existing.Rating,
		Reviews:          existing.Reviews,
	}
	if in.Price != nil {
		updated.Price = *in.Price
	}
	if imageURL != "" {
		updated.Image = imageURL
	}
	if len(galleryURLs) > 0 {
		updated.AdditionalImages = galleryURLs
	}

	result, err := s.products.UpdateProduct(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return result, nil
}

func (s *productService) Delete(ctx context.Context, id int64, callerIsAdmin bool) error {
	if !callerIsAdmin {
		return ErrUnauthorized
	}
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return err
	}
	// Referenced blobs are not reclaimed; orphaned images are an accepted leak.
	s.invalidateCache(ctx)
	return nil
}

func (s *productService) List(ctx context.Context, params store.ListProductsParams) ([]domain.Product, error) {
	if params.Empty() && s.cache != nil {
		products, err := s.cache.GetProductList(ctx)
		if err == nil {
			return products, nil
		}
		log.Printf("INFO: Product list cache miss, falling back to store: %v", err)
	}

	products, err := s.products.ListProducts(ctx, params)
	if err != nil {
		return nil, err
	}

	if params.Empty() && s.cache != nil {
		// Repopulate off the request path; the next reader benefits.
		go func(list []domain.Product) {
			if err := s.cache.SetProductList(context.Background(), list); err != nil {
				log.Printf("WARN: Failed to populate product list cache: %v", err)
			}
		}(products)
	}
	return products, nil
}

func (s *productService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.products.GetProductByID(ctx, id)
}

func (s *productService) Categories(ctx context.Context) ([]string, error) {
	return s.products.ListCategories(ctx)
}

func (s *productService) Stats(ctx context.Context) (*domain.CatalogStats, error) {
	return s.products.GetCatalogStats(ctx)
}

// uploadImages pushes the primary image and then each gallery file through
// the blob store, preserving input order. Any single failure aborts the whole
// operation before persistence; no partial record can reference a failed
// upload.
func (s *productService) uploadImages(ctx context.Context, images ImageSet) (string, []string, error) {
	var imageURL string
	if images.Primary != nil {
		url, err := s.uploader.Upload(ctx, images.Primary.Filename, images.Primary.Content)
		if err != nil {
			return "", nil, fmt.Errorf("%w: primary image: %v", ErrUploadFailed, err)
		}
		imageURL = url
	}

	galleryURLs := make([]string, 0, len(images.Gallery))
	for i, img := range images.Gallery {
		url, err := s.uploader.Upload(ctx, img.Filename, img.Content)
		if err != nil {
			return "", nil, fmt.Errorf("%w: gallery image %d: %v", ErrUploadFailed, i+1, err)
		}
		galleryURLs = append(galleryURLs, url)
	}
	return imageURL, galleryURLs, nil
}

func (s *productService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Printf("WARN: Failed to invalidate product list cache: %v", err)
	}
}
