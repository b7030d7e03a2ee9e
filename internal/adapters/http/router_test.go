package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Haleralex/fundflow/internal/application/dtos"
)

type stubTransfer struct{}

func (stubTransfer) Execute(ctx context.Context, cmd dtos.TransferCommand) (*dtos.TransferResultDTO, error) {
	return &dtos.TransferResultDTO{ID: uuid.New().String(), Status: "completed", Amount: cmd.Amount}, nil
}

type stubFindByKey struct{}

func (stubFindByKey) Execute(ctx context.Context, userID uuid.UUID, key string) (*dtos.IdempotencyLookupDTO, error) {
	return &dtos.IdempotencyLookupDTO{Exists: false}, nil
}

func buildTestRouter() http.Handler {
	config := DefaultRouterConfig()
	config.Environment = "test"
	return NewRouterBuilder(config).
		WithTransferUseCases(&TransferUseCases{
			ExecuteTransfer:      stubTransfer{},
			FindByIdempotencyKey: stubFindByKey{},
		}).
		Build()
}

func TestRouter_HealthEndpointsOpen(t *testing.T) {
	router := buildTestRouter()

	for _, path := range []string{"/health", "/live"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_MetricsEndpointOpen(t *testing.T) {
	router := buildTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_APIRequiresAuth(t *testing.T) {
	router := buildTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers/idempotency/some-key", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_MockTokenGrantsAccess(t *testing.T) {
	router := buildTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers/idempotency/some-key", nil)
	req.Header.Set("Authorization", "Bearer mock:"+uuid.New().String())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_UnknownRouteGets404Envelope(t *testing.T) {
	config := DefaultRouterConfig()
	config.Environment = "test"
	router := NewRouter(config)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}
