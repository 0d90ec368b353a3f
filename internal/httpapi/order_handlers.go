package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"thepresent-be/internal/order"
)

// Any price field the client sends is dropped at the boundary; unit
// prices are resolved server-side from the catalog.
type orderItemRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type createOrderRequest struct {
	Items []orderItemRequest `json:"items"`
}

func (s *Server) createOrder(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Message: "Invalid order data",
			Errors:  map[string]string{"items": "Each item must have a valid product ID and quantity"},
		})
		return
	}

	items := make([]order.NewItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.NewItem{ProductID: it.Product, Quantity: it.Quantity})
	}

	// owning user is always the authenticated caller
	o, err := s.orders.Create(c.Request.Context(), id.ID, items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) myOrders(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
		return
	}

	orders, err := s.orders.GetOrders(c.Request.Context(), id.ID, false)
	if err != nil {
		respondError(c, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) allOrders(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
		return
	}

	orders, err := s.orders.GetOrders(c.Request.Context(), id.ID, id.IsAdmin())
	if err != nil {
		respondError(c, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) getOrder(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
		return
	}

	o, err := s.orders.GetByID(c.Request.Context(), c.Param("id"), id.ID, id.IsAdmin())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid request body"})
		return
	}

	o, err := s.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
