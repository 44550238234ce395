package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lib/pq"

	"storefront-catalog-service/internal/domain"
)

// Predefined errors for store operations
var (
	ErrProductNotFound = errors.New("store: product not found")
	ErrUserNotFound    = errors.New("store: user not found")
	ErrEmailExists     = errors.New("store: email already registered")
)

// PostgresStore implements the ProductStorer and UserStorer interfaces using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const productColumns = `id, name, category, price, original_price, image, additional_images, description, brand, in_stock, specifications, rating, reviews, created_at, updated_at`

// specificationsValue prepares the specifications map for a JSONB column.
// An empty map is stored as SQL NULL rather than an empty object.
func specificationsValue(specs map[string]string) (interface{}, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(specs)
	if err != nil {
		return nil, fmt.Errorf("store: failed to marshal specifications: %w", err)
	}
	return raw, nil
}

// galleryValue prepares the gallery slice for a TEXT[] column, never NULL.
func galleryValue(images []string) interface{} {
	if images == nil {
		images = []string{}
	}
	return pq.Array(images)
}

// scanProduct scans a full product row from either *sql.Row or *sql.Rows.
func scanProduct(scan func(dest ...interface{}) error) (*domain.Product, error) {
	var (
		p         domain.Product
		images    pq.StringArray
		specsJSON sql.NullString
		imageURL  sql.NullString
		origPrice sql.NullFloat64
	)
	err := scan(
		&p.ID, &p.Name, &p.Category, &p.Price, &origPrice, &imageURL, &images,
		&p.Description, &p.Brand, &p.InStock, &specsJSON, &p.Rating, &p.Reviews,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if origPrice.Valid {
		v := origPrice.Float64
		p.OriginalPrice = &v
	}
	if imageURL.Valid {
		p.Image = imageURL.String
	}
	p.AdditionalImages = []string(images)
	if p.AdditionalImages == nil {
		p.AdditionalImages = []string{}
	}
	if specsJSON.Valid && specsJSON.String != "" && specsJSON.String != "null" {
		specs := make(map[string]string)
		if err := json.Unmarshal([]byte(specsJSON.String), &specs); err != nil {
			return nil, fmt.Errorf("store: failed to unmarshal specifications: %w", err)
		}
		p.Specifications = specs
	}
	return &p, nil
}

// --- ProductStorer Implementation ---

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO products
			(name, category, price, original_price, image, additional_images, description, brand, in_stock, specifications, rating, reviews)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + productColumns + `;`

	specsJSON, err := specificationsValue(product.Specifications)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, query,
		product.Name, product.Category, product.Price, product.OriginalPrice,
		nullIfEmpty(product.Image), galleryValue(product.AdditionalImages),
		product.Description, product.Brand, product.InStock, specsJSON,
		product.Rating, product.Reviews,
	)

	created, err := scanProduct(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("store: CreateProduct failed to scan row: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1;`
	row := s.db.QueryRowContext(ctx, query, id)
	product, err := scanProduct(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductByID failed to scan row: %w", err)
	}
	return product, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, error) {
	var queryArgs []interface{}
	var whereClauses []string
	argID := 1

	if params.SearchQuery != nil && *params.SearchQuery != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(name ILIKE $%d OR brand ILIKE $%d OR description ILIKE $%d)", argID, argID+1, argID+2))
		searchTerm := "%" + *params.SearchQuery + "%"
		queryArgs = append(queryArgs, searchTerm, searchTerm, searchTerm)
		argID += 3
	}
	if params.Category != nil && *params.Category != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("category = $%d", argID))
		queryArgs = append(queryArgs, *params.Category)
		argID++
	}
	if params.InStock != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("in_stock = $%d", argID))
		queryArgs = append(queryArgs, *params.InStock)
		argID++
	}

	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query := `SELECT ` + productColumns + ` FROM products` + whereCondition + ` ORDER BY created_at DESC;`
	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		UPDATE products
		SET name = $1, category = $2, price = $3, original_price = $4, image = $5,
			additional_images = $6, description = $7, brand = $8, in_stock = $9,
			specifications = $10, updated_at = CURRENT_TIMESTAMP
		WHERE id = $11
		RETURNING ` + productColumns + `;`

	specsJSON, err := specificationsValue(product.Specifications)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, query,
		product.Name, product.Category, product.Price, product.OriginalPrice,
		nullIfEmpty(product.Image), galleryValue(product.AdditionalImages),
		product.Description, product.Brand, product.InStock, specsJSON,
		product.ID,
	)

	updated, err := scanProduct(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: UpdateProduct failed to scan row: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	query := `DELETE FROM products WHERE id = $1;`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ListCategories returns the distinct category strings across the catalog.
// No ordering is guaranteed to callers; DISTINCT alone decides it here.
func (s *PostgresStore) ListCategories(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT category FROM products;`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("store: ListCategories failed to scan row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}
	return categories, nil
}

func (s *PostgresStore) GetCatalogStats(ctx context.Context) (*domain.CatalogStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE in_stock),
			COUNT(*) FILTER (WHERE NOT in_stock),
			COALESCE(SUM(price), 0),
			(SELECT COUNT(*) FROM users)
		FROM products;`

	var stats domain.CatalogStats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalProducts, &stats.InStockCount, &stats.OutOfStockCount,
		&stats.TotalValue, &stats.TotalUsers,
	)
	if err != nil {
		return nil, fmt.Errorf("store: GetCatalogStats failed to scan row: %w", err)
	}
	return &stats, nil
}

// --- UserStorer Implementation ---

const userColumns = `id, email, password_hash, is_admin, created_at, updated_at`

func (s *PostgresStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (email, password_hash, is_admin)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns + `;`

	var created domain.User
	err := s.db.QueryRowContext(ctx, query, user.Email, user.PasswordHash, user.IsAdmin).Scan(
		&created.ID, &created.Email, &created.PasswordHash, &created.IsAdmin,
		&created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // Unique violation
			if strings.Contains(pqErr.Constraint, "users_email_key") || strings.Contains(pqErr.Detail, "Key (email)") {
				return nil, ErrEmailExists
			}
		}
		return nil, fmt.Errorf("store: CreateUser failed to scan row: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1;`
	var user domain.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.IsAdmin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store: GetUserByID failed to scan row: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1;`
	var user domain.User
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.IsAdmin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store: GetUserByEmail failed to scan row: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		log.Println("INFO: Closing database connection pool...")
		err := s.db.Close()
		if err != nil {
			log.Printf("ERROR: Failed to close database connection pool: %v", err)
			return err
		}
		log.Println("INFO: Database connection pool closed successfully.")
		return nil
	}
	return nil
}

// nullIfEmpty maps an unset URL to SQL NULL.
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
