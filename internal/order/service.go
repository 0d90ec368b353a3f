package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"thepresent-be/internal/errs"
	"thepresent-be/internal/logger"
	"thepresent-be/internal/product"
)

// NewItem is a requested line item. The unit price is never taken from
// the caller; it is resolved from the catalog at order time.
type NewItem struct {
	ProductID string
	Quantity  int
}

// Pricer resolves the authoritative unit price for a product. The
// product repository implements it.
type Pricer interface {
	PriceByID(ctx context.Context, id string) (float64, error)
}

type Service interface {
	Create(ctx context.Context, userID string, items []NewItem) (Order, error)
	GetOrders(ctx context.Context, callerID string, isAdmin bool) ([]Order, error)
	GetByID(ctx context.Context, id, callerID string, isAdmin bool) (Order, error)
	UpdateStatus(ctx context.Context, id, status string) (Order, error)
}

type service struct {
	repo   Repository
	pricer Pricer
}

func NewService(repo Repository, pricer Pricer) Service {
	return &service{repo: repo, pricer: pricer}
}

func (s *service) Create(ctx context.Context, userID string, items []NewItem) (Order, error) {
	log := logger.FromCtx(ctx)

	if len(items) == 0 {
		return Order{}, errs.ValidationFields("Invalid order data", map[string]string{
			"items": "Order must contain at least one item",
		})
	}

	total := decimal.Zero
	lineItems := make([]Item, 0, len(items))
	for i, it := range items {
		if it.ProductID == "" {
			return Order{}, errs.ValidationFields("Invalid items data", map[string]string{
				"items": fmt.Sprintf("Item %d is missing a product ID", i),
			})
		}
		if it.Quantity < 1 {
			return Order{}, errs.ValidationFields("Invalid items data", map[string]string{
				"items": fmt.Sprintf("Item %d must have a quantity of at least 1", i),
			})
		}

		price, err := s.pricer.PriceByID(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return Order{}, errs.ValidationFields("Invalid items data", map[string]string{
					"items": fmt.Sprintf("Item %d references an unknown product", i),
				})
			}
			log.Error("failed to resolve item price",
				zap.String("product_id", it.ProductID), zap.Error(err))
			return Order{}, errs.Internal("Failed to create order", err)
		}

		unit := decimal.NewFromFloat(price).Round(2)
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(it.Quantity))))

		lineItems = append(lineItems, Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: unit.InexactFloat64(),
		})
	}

	o, err := s.repo.Create(ctx, Order{
		UserID: userID,
		Items:  lineItems,
		Total:  total.Round(2).InexactFloat64(),
		Status: StatusPending,
	})
	if err != nil {
		log.Error("failed to create order", zap.String("user_id", userID), zap.Error(err))
		return Order{}, errs.Internal("Failed to create order", err)
	}

	log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("user_id", userID),
		zap.Float64("total", o.Total),
	)
	return o, nil
}

// GetOrders is scoped server-side: admins see everything, everyone
// else sees only their own orders, whatever filters the client sent.
func (s *service) GetOrders(ctx context.Context, callerID string, isAdmin bool) ([]Order, error) {
	var (
		orders []Order
		err    error
	)
	if isAdmin {
		orders, err = s.repo.GetAll(ctx)
	} else {
		orders, err = s.repo.GetByUser(ctx, callerID)
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to fetch orders", zap.Error(err))
		return nil, errs.Internal("Failed to fetch orders", err)
	}
	return orders, nil
}

func (s *service) GetByID(ctx context.Context, id, callerID string, isAdmin bool) (Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, errs.NotFound("Order not found")
		}
		logger.FromCtx(ctx).Error("failed to fetch order", zap.String("order_id", id), zap.Error(err))
		return Order{}, errs.Internal("Failed to fetch order", err)
	}

	if !isAdmin && o.UserID != callerID {
		return Order{}, errs.Forbidden("Not authorized to view this order")
	}
	return o, nil
}

func (s *service) UpdateStatus(ctx context.Context, id, status string) (Order, error) {
	log := logger.FromCtx(ctx)

	next, ok := ParseStatus(status)
	if !ok {
		return Order{}, errs.ValidationFields("Invalid status", map[string]string{
			"status": "Status must be one of: pending, processing, shipped, delivered, cancelled",
		})
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, errs.NotFound("Order not found")
		}
		return Order{}, errs.Internal("Failed to update order status", err)
	}

	if !current.Status.CanTransitionTo(next) {
		return Order{}, errs.ValidationFields("Invalid status", map[string]string{
			"status": fmt.Sprintf("Cannot move order from %s to %s", current.Status, next),
		})
	}

	o, err := s.repo.UpdateStatus(ctx, id, next)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, errs.NotFound("Order not found")
		}
		log.Error("failed to update order status", zap.String("order_id", id), zap.Error(err))
		return Order{}, errs.Internal("Failed to update order status", err)
	}

	log.Info("order status updated",
		zap.String("order_id", id),
		zap.String("status", string(next)),
	)
	return o, nil
}
