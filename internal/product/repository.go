package product

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"thepresent-be/internal/logger"
)

var ErrNotFound = errors.New("product not found")

// isNoMatch treats a malformed uuid the same as an absent row.
// Postgres reports it as a cast error (22P02) rather than an empty
// result, and for a lookup the two mean the same thing.
func isNoMatch(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}

type Repository interface {
	GetAll(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id string) error
	PriceByID(ctx context.Context, id string) (float64, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const productColumns = `p.id, p.name, p.description, p.price, p.category, p.created_at, p.updated_at`

func (r *repository) GetAll(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`, i.url, i.public_id
		FROM products p
		LEFT JOIN product_images i ON i.product_id = p.id
		ORDER BY p.created_at DESC, p.id, i.position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		products []Product
		current  *Product
	)
	for rows.Next() {
		var (
			p        Product
			url      sql.NullString
			publicID sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
			&p.CreatedAt, &p.UpdatedAt, &url, &publicID); err != nil {
			return nil, err
		}

		if current == nil || current.ID != p.ID {
			products = append(products, p)
			current = &products[len(products)-1]
		}
		if url.Valid {
			current.Images = append(current.Images, Image{URL: url.String, PublicID: publicID.String})
		}
	}

	return products, rows.Err()
}

func (r *repository) GetByID(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p WHERE p.id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if isNoMatch(err) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}

	p.Images, err = r.imagesFor(ctx, id)
	return p, err
}

func (r *repository) imagesFor(ctx context.Context, productID string) ([]Image, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT url, public_id FROM product_images
		WHERE product_id = $1 ORDER BY position ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		var publicID sql.NullString
		if err := rows.Scan(&img.URL, &publicID); err != nil {
			return nil, err
		}
		img.PublicID = publicID.String
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	log := logger.FromCtx(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Product{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.Price, p.Category,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		log.Error("db: failed to insert product", zap.String("name", p.Name), zap.Error(err))
		return Product{}, err
	}

	if err := insertImages(ctx, tx, p.ID, p.Images); err != nil {
		return Product{}, err
	}

	return p, tx.Commit()
}

func (r *repository) Update(ctx context.Context, p Product) (Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Product{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, category = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Description, p.Price, p.Category,
	).Scan(&p.UpdatedAt)
	if isNoMatch(err) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_images WHERE product_id = $1`, p.ID); err != nil {
		return Product{}, err
	}
	if err := insertImages(ctx, tx, p.ID, p.Images); err != nil {
		return Product{}, err
	}

	return p, tx.Commit()
}

func insertImages(ctx context.Context, tx *sql.Tx, productID string, images []Image) error {
	for pos, img := range images {
		publicID := sql.NullString{String: img.PublicID, Valid: img.PublicID != ""}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO product_images (product_id, position, url, public_id)
			VALUES ($1, $2, $3, $4)`,
			productID, pos, img.URL, publicID,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if isNoMatch(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) PriceByID(ctx context.Context, id string) (float64, error) {
	var price float64
	err := r.db.QueryRowContext(ctx, `SELECT price FROM products WHERE id = $1`, id).Scan(&price)
	if isNoMatch(err) {
		return 0, ErrNotFound
	}
	return price, err
}
