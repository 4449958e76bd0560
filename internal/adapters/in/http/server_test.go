package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"orderflow/internal/adapters/in/auth"
	httpin "orderflow/internal/adapters/in/http"
	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
)

type MockCreator struct{ mock.Mock }

func (m *MockCreator) Handle(ctx context.Context, cmd commands.CreateOrderCommand) error {
	return m.Called(ctx, cmd).Error(0)
}

type MockTransitioner struct{ mock.Mock }

func (m *MockTransitioner) Handle(ctx context.Context, cmd commands.TransitionOrderCommand) (order.Status, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(order.Status), args.Error(1)
}

type MockReader struct{ mock.Mock }

func (m *MockReader) Handle(ctx context.Context, query queries.GetOrderQuery) (queries.OrderResponse, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(queries.OrderResponse), args.Error(1)
}

type MockActiveReader struct{ mock.Mock }

func (m *MockActiveReader) Handle(ctx context.Context, query queries.GetActiveOrdersQuery) ([]queries.OrderResponse, error) {
	args := m.Called(ctx, query)
	orders, _ := args.Get(0).([]queries.OrderResponse)
	return orders, args.Error(1)
}

type harness struct {
	e        *echo.Echo
	verifier *auth.Verifier

	creator      *MockCreator
	transitioner *MockTransitioner
	reader       *MockReader
	active       *MockActiveReader
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	verifier, err := auth.NewVerifier("test-secret", time.Now)
	require.NoError(t, err)

	h := &harness{
		e:            echo.New(),
		verifier:     verifier,
		creator:      &MockCreator{},
		transitioner: &MockTransitioner{},
		reader:       &MockReader{},
		active:       &MockActiveReader{},
	}
	httpin.RegisterHealth(h.e)
	httpin.NewServer(verifier, h.creator, h.transitioner, h.reader, h.active).RegisterRoutes(h.e)

	t.Cleanup(func() {
		h.creator.AssertExpectations(t)
		h.transitioner.AssertExpectations(t)
		h.reader.AssertExpectations(t)
		h.active.AssertExpectations(t)
	})
	return h
}

func (h *harness) do(t *testing.T, actor *order.Actor, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if actor != nil {
		token, err := h.verifier.Issue(*actor, time.Hour)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func newActor(t *testing.T, role order.Role) order.Actor {
	t.Helper()
	a, err := order.NewActor(role, kernel.NewUUID(), "Someone")
	require.NoError(t, err)
	return a
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpin.Error {
	t.Helper()
	var body httpin.Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequiresToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, nil, http.MethodGet, "/api/v1/orders/active", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, decodeError(t, rec).Code)
}

func TestHealthIsPublic(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, nil, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrder(t *testing.T) {
	partnerID := kernel.NewUUID()
	body := `{"partnerId":"` + partnerID.String() + `","subtotal":2350,"deliveryFee":299,"deliveryAddress":"12 Main St"}`

	t.Run("customer creates order", func(t *testing.T) {
		h := newHarness(t)
		customer := newActor(t, order.RoleCustomer)
		h.creator.On("Handle", mock.Anything, mock.MatchedBy(func(cmd commands.CreateOrderCommand) bool {
			return cmd.Customer().ID().IsEqual(customer.ID()) &&
				cmd.PartnerID().IsEqual(partnerID) &&
				cmd.Subtotal().Amount() == 2350 &&
				cmd.DeliveryAddress() == "12 Main St"
		})).Return(nil).Once()

		rec := h.do(t, &customer, http.MethodPost, "/api/v1/orders", body)

		require.Equal(t, http.StatusCreated, rec.Code)
		var created httpin.CreatedOrder
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		_, err := kernel.UUIDFromString(created.ID)
		require.NoError(t, err)
	})

	t.Run("partner is forbidden", func(t *testing.T) {
		h := newHarness(t)
		partner := newActor(t, order.RolePartner)

		rec := h.do(t, &partner, http.MethodPost, "/api/v1/orders", body)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid partner id", func(t *testing.T) {
		h := newHarness(t)
		customer := newActor(t, order.RoleCustomer)

		rec := h.do(t, &customer, http.MethodPost, "/api/v1/orders",
			`{"partnerId":"nope","subtotal":1,"deliveryFee":0,"deliveryAddress":"x"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing address", func(t *testing.T) {
		h := newHarness(t)
		customer := newActor(t, order.RoleCustomer)

		rec := h.do(t, &customer, http.MethodPost, "/api/v1/orders",
			`{"partnerId":"`+partnerID.String()+`","subtotal":1,"deliveryFee":0}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "deliveryAddress")
	})

	t.Run("storage failure is hidden", func(t *testing.T) {
		h := newHarness(t)
		customer := newActor(t, order.RoleCustomer)
		h.creator.On("Handle", mock.Anything, mock.Anything).
			Return(assert.AnError).Once()

		rec := h.do(t, &customer, http.MethodPost, "/api/v1/orders", body)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	})
}

func TestTransitionOrder(t *testing.T) {
	orderID := kernel.NewUUID()

	t.Run("reject with reason", func(t *testing.T) {
		h := newHarness(t)
		partner := newActor(t, order.RolePartner)
		h.transitioner.On("Handle", mock.Anything, mock.MatchedBy(func(cmd commands.TransitionOrderCommand) bool {
			return cmd.OrderID().IsEqual(orderID) &&
				cmd.Transition() == order.Reject &&
				cmd.Actor().ID().IsEqual(partner.ID()) &&
				cmd.Reason() == "closed"
		})).Return(order.Rejected, nil).Once()

		rec := h.do(t, &partner, http.MethodPost,
			"/api/v1/orders/"+orderID.String()+"/reject", `{"reason":"closed"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var result httpin.TransitionResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, order.Rejected.String(), result.Status)
		assert.Equal(t, orderID.String(), result.ID)
	})

	t.Run("without body", func(t *testing.T) {
		h := newHarness(t)
		agent := newActor(t, order.RoleAgent)
		h.transitioner.On("Handle", mock.Anything, mock.MatchedBy(func(cmd commands.TransitionOrderCommand) bool {
			return cmd.Transition() == order.AssignAgent
		})).Return(order.Accepted, nil).Once()

		rec := h.do(t, &agent, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/assign", "")

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown transition", func(t *testing.T) {
		h := newHarness(t)
		agent := newActor(t, order.RoleAgent)

		rec := h.do(t, &agent, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/teleport", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	errorCases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid transition", order.ErrInvalidTransition, http.StatusConflict},
		{"unauthorized", order.ErrUnauthorized, http.StatusForbidden},
		{"not found", errs.NewObjectNotFoundError("order", orderID), http.StatusNotFound},
		{"out of range", errs.NewValueIsOutOfRangeError("rejectReason length", 501, 0, 500), http.StatusBadRequest},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			partner := newActor(t, order.RolePartner)
			h.transitioner.On("Handle", mock.Anything, mock.Anything).
				Return(order.Unknown, tc.err).Once()

			rec := h.do(t, &partner, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/accept", "")

			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, tc.want, decodeError(t, rec).Code)
		})
	}
}

func TestGetOrder(t *testing.T) {
	customer := newActor(t, order.RoleCustomer)
	partner := newActor(t, order.RolePartner)
	orderID := kernel.NewUUID()
	resp := queries.OrderResponse{
		ID:         orderID.String(),
		CustomerID: customer.ID().String(),
		PartnerID:  partner.ID().String(),
		Status:     order.Pending.String(),
		Total:      2649,
	}

	testCases := []struct {
		name  string
		actor order.Actor
		want  int
	}{
		{"owning customer", customer, http.StatusOK},
		{"owning partner", partner, http.StatusOK},
		{"any agent", newActor(t, order.RoleAgent), http.StatusOK},
		{"other customer", newActor(t, order.RoleCustomer), http.StatusNotFound},
		{"other partner", newActor(t, order.RolePartner), http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.reader.On("Handle", mock.Anything, mock.MatchedBy(func(q queries.GetOrderQuery) bool {
				return q.OrderID().IsEqual(orderID)
			})).Return(resp, nil).Once()

			rec := h.do(t, &tc.actor, http.MethodGet, "/api/v1/orders/"+orderID.String(), "")

			require.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusOK {
				var got queries.OrderResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, resp.Total, got.Total)
			}
		})
	}

	t.Run("bad id", func(t *testing.T) {
		h := newHarness(t)

		rec := h.do(t, &customer, http.MethodGet, "/api/v1/orders/not-a-uuid", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetActiveOrders(t *testing.T) {
	t.Run("lists caller orders", func(t *testing.T) {
		h := newHarness(t)
		partner := newActor(t, order.RolePartner)
		h.active.On("Handle", mock.Anything, mock.MatchedBy(func(q queries.GetActiveOrdersQuery) bool {
			return q.Role() == order.RolePartner && q.OwnerID().IsEqual(partner.ID())
		})).Return([]queries.OrderResponse{{ID: "o-1"}, {ID: "o-2"}}, nil).Once()

		rec := h.do(t, &partner, http.MethodGet, "/api/v1/orders/active", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var got []queries.OrderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 2)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		h := newHarness(t)
		customer := newActor(t, order.RoleCustomer)
		h.active.On("Handle", mock.Anything, mock.Anything).Return(nil, nil).Once()

		rec := h.do(t, &customer, http.MethodGet, "/api/v1/orders/active", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}
