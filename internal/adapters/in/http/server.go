// Package http is the REST API of the ordering service.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"orderflow/internal/adapters/in/auth"
	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
)

// Use case ports, satisfied by the command and query handlers.
type (
	OrderCreator interface {
		Handle(ctx context.Context, cmd commands.CreateOrderCommand) error
	}
	OrderTransitioner interface {
		Handle(ctx context.Context, cmd commands.TransitionOrderCommand) (order.Status, error)
	}
	OrderReader interface {
		Handle(ctx context.Context, query queries.GetOrderQuery) (queries.OrderResponse, error)
	}
	ActiveOrdersReader interface {
		Handle(ctx context.Context, query queries.GetActiveOrdersQuery) ([]queries.OrderResponse, error)
	}
)

// Error is the body of every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type NewOrder struct {
	PartnerID       string `json:"partnerId"`
	Subtotal        int64  `json:"subtotal"`
	DeliveryFee     int64  `json:"deliveryFee"`
	DeliveryAddress string `json:"deliveryAddress"`
}

type CreatedOrder struct {
	ID string `json:"id"`
}

type TransitionRequest struct {
	Reason string `json:"reason"`
}

type TransitionResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Server coordinates between HTTP handlers and application use cases.
type Server struct {
	verifier *auth.Verifier

	// Command handlers
	createOrderHandler     OrderCreator
	transitionOrderHandler OrderTransitioner

	// Query handlers
	getOrderHandler        OrderReader
	getActiveOrdersHandler ActiveOrdersReader
}

func NewServer(
	verifier *auth.Verifier,
	createOrderHandler OrderCreator,
	transitionOrderHandler OrderTransitioner,
	getOrderHandler OrderReader,
	getActiveOrdersHandler ActiveOrdersReader,
) *Server {
	return &Server{
		verifier:               verifier,
		createOrderHandler:     createOrderHandler,
		transitionOrderHandler: transitionOrderHandler,
		getOrderHandler:        getOrderHandler,
		getActiveOrdersHandler: getActiveOrdersHandler,
	}
}

// RegisterHealth mounts the unauthenticated /health probe. Every process
// serves it, whichever services it runs.
func RegisterHealth(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// RegisterRoutes mounts the API under /api/v1.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1", s.authenticate)
	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/active", s.GetActiveOrders)
	api.GET("/orders/:id", s.GetOrder)
	api.POST("/orders/:id/:transition", s.TransitionOrder)
}

const actorKey = "actor"

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := s.verifier.Verify(auth.TokenFromRequest(c.Request()))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, Error{Code: http.StatusUnauthorized, Message: "Authentication required"})
		}
		c.Set(actorKey, actor)
		return next(c)
	}
}

func actorFrom(c echo.Context) order.Actor {
	actor, _ := c.Get(actorKey).(order.Actor)
	return actor
}

// CreateOrder handles POST /api/v1/orders - a customer places an order.
func (s *Server) CreateOrder(c echo.Context) error {
	var body NewOrder
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, Error{Code: http.StatusBadRequest, Message: "Invalid request body"})
	}

	partnerID, err := kernel.UUIDFromString(body.PartnerID)
	if err != nil {
		return writeError(c, errs.NewValueIsInvalidErrorWithCause("partnerId", err))
	}

	orderID := kernel.NewUUID()
	cmd, err := commands.NewCreateOrderCommand(orderID, actorFrom(c), partnerID,
		body.Subtotal, body.DeliveryFee, body.DeliveryAddress)
	if err != nil {
		return writeError(c, err)
	}

	if err = s.createOrderHandler.Handle(c.Request().Context(), cmd); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, CreatedOrder{ID: orderID.String()})
}

// GetOrder handles GET /api/v1/orders/:id. Customers and partners only see
// their own orders; agents see any order so they can evaluate a job.
func (s *Server) GetOrder(c echo.Context) error {
	orderID, err := kernel.UUIDFromString(c.Param("id"))
	if err != nil {
		return writeError(c, errs.NewValueIsInvalidErrorWithCause("id", err))
	}

	query, err := queries.NewGetOrderQuery(orderID)
	if err != nil {
		return writeError(c, err)
	}

	resp, err := s.getOrderHandler.Handle(c.Request().Context(), query)
	if err != nil {
		return writeError(c, err)
	}

	if !canRead(actorFrom(c), resp) {
		// indistinguishable from a missing order
		return writeError(c, errs.NewObjectNotFoundError("order", orderID))
	}
	return c.JSON(http.StatusOK, resp)
}

func canRead(actor order.Actor, o queries.OrderResponse) bool {
	id := actor.ID().String()
	switch actor.Role() {
	case order.RoleCustomer:
		return o.CustomerID == id
	case order.RolePartner:
		return o.PartnerID == id
	case order.RoleAgent:
		return true
	default:
		return false
	}
}

// GetActiveOrders handles GET /api/v1/orders/active - non-terminal orders of
// the caller.
func (s *Server) GetActiveOrders(c echo.Context) error {
	query, err := queries.NewGetActiveOrdersQuery(actorFrom(c))
	if err != nil {
		return writeError(c, err)
	}

	orders, err := s.getActiveOrdersHandler.Handle(c.Request().Context(), query)
	if err != nil {
		return writeError(c, err)
	}
	if orders == nil {
		orders = []queries.OrderResponse{}
	}
	return c.JSON(http.StatusOK, orders)
}

// TransitionOrder handles POST /api/v1/orders/:id/:transition.
func (s *Server) TransitionOrder(c echo.Context) error {
	orderID, err := kernel.UUIDFromString(c.Param("id"))
	if err != nil {
		return writeError(c, errs.NewValueIsInvalidErrorWithCause("id", err))
	}
	transition, err := order.ParseTransition(c.Param("transition"))
	if err != nil {
		return c.JSON(http.StatusNotFound, Error{Code: http.StatusNotFound, Message: "Unknown transition"})
	}

	var body TransitionRequest
	if c.Request().ContentLength > 0 {
		if err = c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, Error{Code: http.StatusBadRequest, Message: "Invalid request body"})
		}
	}

	cmd, err := commands.NewTransitionOrderCommand(orderID, transition, actorFrom(c), body.Reason)
	if err != nil {
		return writeError(c, err)
	}

	status, err := s.transitionOrderHandler.Handle(c.Request().Context(), cmd)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, TransitionResult{ID: orderID.String(), Status: status.String()})
}

func writeError(c echo.Context, err error) error {
	code := statusOf(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		c.Logger().Error(err)
		message = "Internal error"
	}
	return c.JSON(code, Error{Code: code, Message: message})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, order.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, order.ErrUnauthorized),
		errors.Is(err, commands.ErrOnlyCustomersCreateOrders):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
