// Package ws serves the WebSocket endpoints clients use to receive pushes.
//
// Personal endpoints (/agents/:id, /partners/:id, /customers/:id) register
// the connection under the authenticated owner id; a newer session replaces
// an older one. The broadcast endpoint (/agents) joins the agents broadcast
// room. Inbound frames are read and discarded; the read loop only detects
// that the client went away.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"

	"orderflow/internal/adapters/in/auth"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
	"orderflow/internal/realtime"
)

const (
	defaultWriteTimeout = 10 * time.Second

	reasonShutdown = "server shutting down"
)

// Registries holds one registry per audience. A nil registry disables its
// endpoints, so a process only serves the audiences it runs.
type Registries struct {
	Agents    *realtime.Registry
	Partners  *realtime.Registry
	Customers *realtime.Registry
}

type Server struct {
	registries   Registries
	verifier     *auth.Verifier
	logger       *slog.Logger
	shutdown     context.Context
	writeTimeout time.Duration
}

// NewServer builds the endpoints. Every open socket is closed once shutdown
// is cancelled.
func NewServer(shutdown context.Context, registries Registries, verifier *auth.Verifier, logger *slog.Logger) (*Server, error) {
	if shutdown == nil {
		return nil, errs.NewValueIsRequiredError("shutdown context")
	}
	if verifier == nil {
		return nil, errs.NewValueIsRequiredError("verifier")
	}
	if logger == nil {
		return nil, errs.NewValueIsRequiredError("logger")
	}
	return &Server{
		registries:   registries,
		verifier:     verifier,
		logger:       logger.With("component", "ws"),
		shutdown:     shutdown,
		writeTimeout: defaultWriteTimeout,
	}, nil
}

// RegisterRoutes mounts the endpoints of every configured audience.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	if reg := s.registries.Agents; reg != nil {
		e.GET("/agents", s.broadcastRoom(reg, order.RoleAgent))
		e.GET("/agents/:id", s.personalRoom(reg, order.RoleAgent))
	}
	if reg := s.registries.Partners; reg != nil {
		e.GET("/partners/:id", s.personalRoom(reg, order.RolePartner))
	}
	if reg := s.registries.Customers; reg != nil {
		e.GET("/customers/:id", s.personalRoom(reg, order.RoleCustomer))
	}
}

func (s *Server) personalRoom(reg *realtime.Registry, role order.Role) echo.HandlerFunc {
	return func(c echo.Context) error {
		pathID, err := kernel.UUIDFromString(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "id must be a UUID")
		}
		actor, err := s.authenticate(c, role)
		if err != nil {
			return err
		}
		if !actor.ID().IsEqual(pathID) {
			return echo.NewHTTPError(http.StatusForbidden, "token does not belong to this id")
		}

		id := pathID.String()
		s.serve(c, reg, id, func(sock *socket) func() {
			reg.Register(id, sock)
			return func() { reg.Release(id, sock) }
		})
		return nil
	}
}

func (s *Server) broadcastRoom(reg *realtime.Registry, role order.Role) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := s.authenticate(c, role); err != nil {
			return err
		}

		connID := uuid.NewString()
		s.serve(c, reg, connID, func(sock *socket) func() {
			reg.Join(connID, sock)
			return func() { reg.Leave(connID) }
		})
		return nil
	}
}

func (s *Server) authenticate(c echo.Context, role order.Role) (order.Actor, error) {
	actor, err := s.verifier.Verify(auth.TokenFromRequest(c.Request()))
	if err != nil {
		if !errors.Is(err, auth.ErrMissingToken) {
			s.logger.DebugContext(c.Request().Context(), "WebSocket token rejected", "path", c.Path(), "error", err)
		}
		return order.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if actor.Role() != role {
		return order.Actor{}, echo.NewHTTPError(http.StatusForbidden, "endpoint is reserved for "+role.String()+"s")
	}
	return actor, nil
}

// serve upgrades the request and blocks until the connection ends. attach
// adds the socket to the registry and returns its detach function.
func (s *Server) serve(c echo.Context, reg *realtime.Registry, id string, attach func(*socket) func()) {
	logger := s.logger.With("audience", reg.Audience(), "id", id)

	server := websocket.Server{Handler: func(conn *websocket.Conn) {
		sock := newSocket(conn, s.writeTimeout)
		detach := attach(sock)
		defer detach()

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-s.shutdown.Done():
				_ = sock.Close(reasonShutdown)
			case <-done:
			}
		}()

		logger.Info("Connection opened")
		discardInbound(conn)
		sock.markClosed()
		logger.Info("Connection closed")
	}}
	server.ServeHTTP(c.Response(), c.Request())
}

func discardInbound(conn *websocket.Conn) {
	for {
		var frame string
		if err := websocket.Message.Receive(conn, &frame); err != nil {
			return
		}
	}
}
