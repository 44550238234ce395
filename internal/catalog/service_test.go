package catalog

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/store"
)

// MockProductStorer is a mock implementation of store.ProductStorer
type MockProductStorer struct {
	mock.Mock
}

func (m *MockProductStorer) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) ListProducts(ctx context.Context, params store.ListProductsParams) ([]domain.Product, error) {
	args := m.Called(ctx, params)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Error(1)
}

func (m *MockProductStorer) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) DeleteProduct(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductStorer) ListCategories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	var categories []string
	if arg0 := args.Get(0); arg0 != nil {
		categories = arg0.([]string)
	}
	return categories, args.Error(1)
}

func (m *MockProductStorer) GetCatalogStats(ctx context.Context) (*domain.CatalogStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CatalogStats), args.Error(1)
}

// MockUploader is a mock implementation of the blob store contract.
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	args := m.Called(ctx, filename, r)
	return args.String(0), args.Error(1)
}

// MockListCache is a mock implementation of the product-list cache.
type MockListCache struct {
	mock.Mock
}

func (m *MockListCache) GetProductList(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Error(1)
}

func (m *MockListCache) SetProductList(ctx context.Context, products []domain.Product) error {
	args := m.Called(ctx, products)
	return args.Error(0)
}

func (m *MockListCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Helper function to get a pointer (useful for optional fields)
func PtrTo[T any](v T) *T {
	return &v
}

func upload(name, content string) ImageUpload {
	return ImageUpload{Filename: name, Content: strings.NewReader(content)}
}

func validInput() ProductInput {
	return ProductInput{
		Name:     "Ryzen 9 7950X",
		Category: "CPU",
		Price:    PtrTo(699.0),
		Brand:    "AMD",
		InStock:  PtrTo(true),
	}
}

// --- ParseSpecifications ---

func TestParseSpecifications(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty input yields nil map", raw: "", want: nil},
		{name: "whitespace only yields nil map", raw: "   ", want: nil},
		{
			name: "flat string map",
			raw:  `{"cores": "16", "socket": "AM5"}`,
			want: map[string]string{"cores": "16", "socket": "AM5"},
		},
		{
			name: "duplicate keys resolve last-write-wins",
			raw:  `{"cores": "12", "cores": "16"}`,
			want: map[string]string{"cores": "16"},
		},
		{name: "malformed JSON", raw: `{not json`, wantErr: true},
		{name: "non-string values", raw: `{"cores": 16}`, wantErr: true},
		{name: "nested object", raw: `{"clocks": {"base": "4.5"}}`, wantErr: true},
		{name: "array payload", raw: `["a", "b"]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpecifications(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput), "error should be ErrInvalidInput")
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// --- Create ---

func TestService_Create_RequiresAdmin(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockUploader := new(MockUploader)
	svc := NewService(mockStore, mockUploader, nil)

	created, err := svc.Create(context.Background(), validInput(), ImageSet{}, false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Nil(t, created)
	mockStore.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestService_Create_MissingRequiredFields(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockUploader := new(MockUploader)
	svc := NewService(mockStore, mockUploader, nil)

	tests := []struct {
		name  string
		input ProductInput
	}{
		{"missing name", ProductInput{Category: "CPU", Price: PtrTo(10.0)}},
		{"missing category", ProductInput{Name: "X", Price: PtrTo(10.0)}},
		{"missing price", ProductInput{Name: "X", Category: "CPU"}},
		{"negative price", ProductInput{Name: "X", Category: "CPU", Price: PtrTo(-1.0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := svc.Create(context.Background(), tt.input, ImageSet{}, true)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput), "error should be ErrInvalidInput")
			assert.Nil(t, created)
		})
	}
	mockStore.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestService_Create_MalformedSpecifications(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockUploader := new(MockUploader)
	svc := NewService(mockStore, mockUploader, nil)

	input := validInput()
	input.Specifications = `{not json`

	created, err := svc.Create(context.Background(), input, ImageSet{Primary: PtrTo(upload("cpu.jpg", "img"))}, true)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Nil(t, created)
	// Spec parse failure must not fall through to a partial save, or even an upload.
	mockUploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestService_Create_TooManyGalleryImages(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockUploader := new(MockUploader)
	svc := NewService(mockStore, mockUploader, nil)

	var gallery []ImageUpload
	for i := 0; i < MaxGalleryImages+1; i++ {
		gallery = append(gallery, upload("extra.jpg", "img"))
	}

	created, err := svc.Create(context.Background(), validInput(), ImageSet{Gallery: gallery}, true)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Nil(t, created)
	mockUploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Create_UploadFailureAbortsPersist(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockUploader := new(MockUploader)
	svc := NewService(mockStore, mockUploader, nil)

	mockUploader.On("Upload", mock.Anything, "cpu.jpg", mock.Anything).
		Return("", errors.New("blob store unavailable")).Once()

	created, err := svc.Create(context.Background(), validInput(),
		ImageSet{Primary: PtrTo(upload("cpu.jpg", "img"))}, true)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUploadFailed), "error should be ErrUploadFailed")
	assert.Nil(t, created)
	mockStore.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
	mockUploader.AssertExpectations(t)
}

func TestService_Create_GalleryUploadFailureAborts(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockUploader := new(MockUploader)
	svc := NewService(mockStore, mockUploader, nil)

	mockUploader.On("Upload", mock.Anything, "a.jpg", mock.Anything).Return("http://blob/a.jpg", nil).Once()
	mockUploader.On("Upload", mock.Anything, "b.jpg", mock.Anything).
		Return("", errors.New("disk full")).Once()

	created, err := svc.Create(context.Background(), validInput(),
		ImageSet{Gallery: []ImageUpload{upload("a.jpg", "a"), upload("b.jpg", "b")}}, true)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUploadFailed))
	assert.Nil(t, created)
	mockStore.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
	mockUploader.AssertExpectations(t)
}

func TestService_Create_Success_NoFiles(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockUploader := new(MockUploader)
	svc := NewService(mockStore, mockUploader, nil)

	input := ProductInput{Name: "X", Category: "CPU", Price: PtrTo(1000.0)}

	mockStore.On("CreateProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Name == "X" && p.Category == "CPU" && p.Price == 1000 &&
			p.Image == "" && len(p.AdditionalImages) == 0 && !p.InStock &&
			p.Rating == 0 && p.Reviews == 0
	})).Return(&domain.Product{ID: 42, Name: "X", Category: "CPU", Price: 1000, AdditionalImages: []string{}}, nil).Once()

	created, err := svc.Create(context.Background(), input, ImageSet{}, true)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, int64(42), created.ID)
	assert.Empty(t, created.Image)
	assert.Empty(t, created.AdditionalImages)
	mockUploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertExpectations(t)
}

func TestService_Create_Success_WithImages(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockUploader := new(MockUploader)
	svc := NewService(mockStore, mockUploader, nil)

	mockUploader.On("Upload", mock.Anything, "main.jpg", mock.Anything).Return("http://blob/main.jpg", nil).Once()
	mockUploader.On("Upload", mock.Anything, "g1.jpg", mock.Anything).Return("http://blob/g1.jpg", nil).Once()
	mockUploader.On("Upload", mock.Anything, "g2.jpg", mock.Anything).Return("http://blob/g2.jpg", nil).Once()

	input := validInput()
	input.Specifications = `{"cores": "16"}`

	mockStore.On("CreateProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Image == "http://blob/main.jpg" &&
			assert.ObjectsAreEqual([]string{"http://blob/g1.jpg", "http://blob/g2.jpg"}, p.AdditionalImages) &&
			p.Specifications["cores"] == "16"
	})).Return(&domain.Product{ID: 7}, nil).Once()

	images := ImageSet{
		Primary: PtrTo(upload("main.jpg", "m")),
		Gallery: []ImageUpload{upload("g1.jpg", "1"), upload("g2.jpg", "2")},
	}
	created, err := svc.Create(context.Background(), input, images, true)

	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	mockUploader.AssertExpectations(t)
	mockStore.AssertExpectations(t)
}

// --- Update ---

func TestService_Update_RequiresAdmin(t *testing.T) {
	mockStore := new(MockProductStorer)
	svc := NewService(mockStore, new(MockUploader), nil)

	updated, err := svc.Update(context.Background(), 1, validInput(), ImageSet{}, false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Nil(t, updated)
	mockStore.AssertNotCalled(t, "GetProductByID", mock.Anything, mock.Anything)
}

func TestService_Update_NotFound(t *testing.T) {
	mockStore := new(MockProductStorer)
	svc := NewService(mockStore, new(MockUploader), nil)

	mockStore.On("GetProductByID", mock.Anything, int64(99)).Return(nil, store.ErrProductNotFound).Once()

	updated, err := svc.Update(context.Background(), 99, validInput(), ImageSet{}, true)

	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrProductNotFound))
	assert.Nil(t, updated)
	mockStore.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything)
}

func TestService_Update_KeepsImagesWhenNoFilesSupplied(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockUploader := new(MockUploader)
	svc := NewService(mockStore, mockUploader, nil)

	existing := &domain.Product{
		ID:               5,
		Name:             "Old Name",
		Category:         "GPU",
		Price:            500,
		Image:            "http://blob/old-main.jpg",
		AdditionalImages: []string{"http://blob/old-1.jpg", "http://blob/old-2.jpg"},
		Rating:           4.5,
		Reviews:          12,
	}
	mockStore.On("GetProductByID", mock.Anything, int64(5)).Return(existing, nil).Once()

	input := ProductInput{Name: "New Name", Category: "GPU", Price: PtrTo(450.0)}
	mockStore.On("UpdateProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.ID == 5 && p.Name == "New Name" && p.Price == 450 &&
			p.Image == "http://blob/old-main.jpg" &&
			assert.ObjectsAreEqual([]string{"http://blob/old-1.jpg", "http://blob/old-2.jpg"}, p.AdditionalImages) &&
			p.Rating == 4.5 && p.Reviews == 12
	})).Return(existing, nil).Once()

	_, err := svc.Update(context.Background(), 5, input, ImageSet{}, true)

	require.NoError(t, err)
	mockUploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertExpectations(t)
}

func TestService_Update_ReplacesWholeGallery(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockUploader := new(MockUploader)
	svc := NewService(mockStore, mockUploader, nil)

	existing := &domain.Product{
		ID:               5,
		Name:             "GPU",
		Category:         "GPU",
		Price:            500,
		AdditionalImages: []string{"http://blob/old-1.jpg", "http://blob/old-2.jpg", "http://blob/old-3.jpg"},
	}
	mockStore.On("GetProductByID", mock.Anything, int64(5)).Return(existing, nil).Once()
	mockUploader.On("Upload", mock.Anything, "new-1.jpg", mock.Anything).Return("http://blob/new-1.jpg", nil).Once()

	// The new single-image gallery replaces all three prior URLs, not appends.
	mockStore.On("UpdateProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return assert.ObjectsAreEqual([]string{"http://blob/new-1.jpg"}, p.AdditionalImages)
	})).Return(existing, nil).Once()

	input := ProductInput{Name: "GPU", Category: "GPU", Price: PtrTo(500.0)}
	_, err := svc.Update(context.Background(), 5, input,
		ImageSet{Gallery: []ImageUpload{upload("new-1.jpg", "n")}}, true)

	require.NoError(t, err)
	mockUploader.AssertExpectations(t)
	mockStore.AssertExpectations(t)
}

func TestService_Update_ReplacesPrimaryImage(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockUploader := new(MockUploader)
	svc := NewService(mockStore, mockUploader, nil)

	existing := &domain.Product{ID: 5, Name: "GPU", Category: "GPU", Price: 500, Image: "http://blob/old.jpg"}
	mockStore.On("GetProductByID", mock.Anything, int64(5)).Return(existing, nil).Once()
	mockUploader.On("Upload", mock.Anything, "new.jpg", mock.Anything).Return("http://blob/new.jpg", nil).Once()
	mockStore.On("UpdateProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Image == "http://blob/new.jpg"
	})).Return(existing, nil).Once()

	input := ProductInput{Name: "GPU", Category: "GPU", Price: PtrTo(500.0)}
	_, err := svc.Update(context.Background(), 5, input,
		ImageSet{Primary: PtrTo(upload("new.jpg", "n"))}, true)

	require.NoError(t, err)
	mockStore.AssertExpectations(t)
}

// --- Delete ---

func TestService_Delete(t *testing.T) {
	mockStore := new(MockProductStorer)
	svc := NewService(mockStore, new(MockUploader), nil)

	t.Run("requires admin", func(t *testing.T) {
		err := svc.Delete(context.Background(), 1, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnauthorized))
	})

	t.Run("not found", func(t *testing.T) {
		mockStore.On("DeleteProduct", mock.Anything, int64(99)).Return(store.ErrProductNotFound).Once()
		err := svc.Delete(context.Background(), 99, true)
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrProductNotFound))
	})

	t.Run("success", func(t *testing.T) {
		mockStore.On("DeleteProduct", mock.Anything, int64(5)).Return(nil).Once()
		err := svc.Delete(context.Background(), 5, true)
		require.NoError(t, err)
	})

	mockStore.AssertExpectations(t)
}

// --- List / cache interplay ---

func TestService_List_ServesFromCacheWhenUnfiltered(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockCache := new(MockListCache)
	svc := NewService(mockStore, new(MockUploader), mockCache)

	cached := []domain.Product{{ID: 1, Name: "Cached"}}
	mockCache.On("GetProductList", mock.Anything).Return(cached, nil).Once()

	products, err := svc.List(context.Background(), store.ListProductsParams{})

	require.NoError(t, err)
	assert.Equal(t, cached, products)
	mockStore.AssertNotCalled(t, "ListProducts", mock.Anything, mock.Anything)
	mockCache.AssertExpectations(t)
}

func TestService_List_FallsBackToStoreOnCacheMiss(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockCache := new(MockListCache)
	svc := NewService(mockStore, new(MockUploader), mockCache)

	fromStore := []domain.Product{{ID: 2, Name: "Stored"}}
	mockCache.On("GetProductList", mock.Anything).Return(nil, errors.New("cache miss")).Once()
	mockCache.On("SetProductList", mock.Anything, fromStore).Return(nil).Maybe() // async repopulation
	mockStore.On("ListProducts", mock.Anything, store.ListProductsParams{}).Return(fromStore, nil).Once()

	products, err := svc.List(context.Background(), store.ListProductsParams{})

	require.NoError(t, err)
	assert.Equal(t, fromStore, products)
	mockStore.AssertExpectations(t)
}

func TestService_List_FilteredQueryBypassesCache(t *testing.T) {
	mockStore := new(MockProductStorer)
	mockCache := new(MockListCache)
	svc := NewService(mockStore, new(MockUploader), mockCache)

	params := store.ListProductsParams{Category: PtrTo("CPU")}
	mockStore.On("ListProducts", mock.Anything, params).Return([]domain.Product{}, nil).Once()

	_, err := svc.List(context.Background(), params)

	require.NoError(t, err)
	mockCache.AssertNotCalled(t, "GetProductList", mock.Anything)
	mockStore.AssertExpectations(t)
}

// --- Derived views ---

func TestService_Categories(t *testing.T) {
	mockStore := new(MockProductStorer)
	svc := NewService(mockStore, new(MockUploader), nil)

	mockStore.On("ListCategories", mock.Anything).Return([]string{"CPU", "GPU"}, nil).Once()

	categories, err := svc.Categories(context.Background())

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"CPU", "GPU"}, categories)
	mockStore.AssertExpectations(t)
}

func TestService_Stats(t *testing.T) {
	mockStore := new(MockProductStorer)
	svc := NewService(mockStore, new(MockUploader), nil)

	expected := &domain.CatalogStats{TotalProducts: 10, InStockCount: 7, OutOfStockCount: 3, TotalValue: 12345.5, TotalUsers: 2}
	mockStore.On("GetCatalogStats", mock.Anything).Return(expected, nil).Once()

	stats, err := svc.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, expected, stats)
	assert.Equal(t, stats.TotalProducts, stats.InStockCount+stats.OutOfStockCount)
	mockStore.AssertExpectations(t)
}
