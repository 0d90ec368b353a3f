package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"thepresent-be/internal/logger"
)

var ErrNotFound = errors.New("order not found")

// isNoMatch treats a malformed uuid the same as an absent row;
// Postgres reports it as a cast error (22P02) instead of an empty
// result.
func isNoMatch(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}

type Repository interface {
	Create(ctx context.Context, o Order) (Order, error)
	GetAll(ctx context.Context) ([]Order, error)
	GetByUser(ctx context.Context, userID string) ([]Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) (Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, o Order) (Order, error) {
	log := logger.FromCtx(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, total, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		o.UserID, o.Total, o.Status,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		log.Error("db: failed to insert order", zap.String("user_id", o.UserID), zap.Error(err))
		return Order{}, err
	}

	for pos, it := range o.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			o.ID, pos, it.ProductID, it.Quantity, it.UnitPrice,
		); err != nil {
			log.Error("db: failed to insert order item", zap.String("order_id", o.ID), zap.Error(err))
			return Order{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Order{}, err
	}

	return r.GetByID(ctx, o.ID)
}

const orderSelect = `
	SELECT o.id, o.user_id, o.total, o.status, o.created_at, o.updated_at,
	       u.name, u.email
	FROM orders o
	JOIN users u ON u.id = o.user_id`

func (r *repository) GetAll(ctx context.Context) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, orderSelect+` ORDER BY o.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(ctx, rows)
}

func (r *repository) GetByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, orderSelect+` WHERE o.user_id = $1 ORDER BY o.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(ctx, rows)
}

func (r *repository) GetByID(ctx context.Context, id string) (Order, error) {
	rows, err := r.db.QueryContext(ctx, orderSelect+` WHERE o.id = $1`, id)
	if isNoMatch(err) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()

	orders, err := r.collect(ctx, rows)
	if err != nil {
		return Order{}, err
	}
	if len(orders) == 0 {
		return Order{}, ErrNotFound
	}
	return orders[0], nil
}

func (r *repository) collect(ctx context.Context, rows *sql.Rows) ([]Order, error) {
	var (
		orders []Order
		ids    []string
	)
	for rows.Next() {
		var (
			o    Order
			user UserRef
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt,
			&user.Name, &user.Email); err != nil {
			return nil, err
		}
		user.ID = o.UserID
		o.User = &user
		o.Items = []Item{}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if its, ok := items[orders[i].ID]; ok {
			orders[i].Items = its
		}
	}
	return orders, nil
}

// itemsFor resolves line items with product display detail. Products
// deleted after the order was placed come back with nil detail; the
// snapshot price and reference survive.
func (r *repository) itemsFor(ctx context.Context, orderIDs []string) (map[string][]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.order_id, oi.product_id, oi.quantity, oi.unit_price,
		       p.name,
		       (SELECT i.url FROM product_images i
		        WHERE i.product_id = p.id ORDER BY i.position ASC LIMIT 1)
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.position ASC`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string][]Item)
	for rows.Next() {
		var (
			orderID string
			it      Item
			name    sql.NullString
			image   sql.NullString
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &name, &image); err != nil {
			return nil, err
		}
		if name.Valid {
			it.ProductName = &name.String
		}
		if image.Valid {
			it.ProductImage = &image.String
		}
		items[orderID] = append(items[orderID], it)
	}
	return items, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status Status) (Order, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if isNoMatch(err) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Order{}, err
	}
	if affected == 0 {
		return Order{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}
