package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"mlm-compensation-backend/internal/common/config"
	"mlm-compensation-backend/internal/common/middleware"
	"mlm-compensation-backend/internal/features/activation/models"
	txnmemory "mlm-compensation-backend/internal/features/activation/repository/memory"
	"mlm-compensation-backend/internal/features/activation/service"
	membermodels "mlm-compensation-backend/internal/features/member/models"
	memberrepo "mlm-compensation-backend/internal/features/member/repository"
	membermemory "mlm-compensation-backend/internal/features/member/repository/memory"
	memberservice "mlm-compensation-backend/internal/features/member/service"
)

const testSecret = "test-secret"

type testEnv struct {
	router  *gin.Engine
	members memberrepo.MemberRepository
	alice   *membermodels.Member
	bob     *membermodels.Member
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.Root.MemberCode = "1000000001"
	cfg.Root.FullName = "Company Root"
	cfg.Plan.DirectRate = decimal.RequireFromString("0.10")
	cfg.Plan.FighterRate = decimal.RequireFromString("0.05")
	cfg.Plan.MatchingRate = decimal.RequireFromString("0.30")
	cfg.Plan.BVPointValue = decimal.NewFromInt(10)
	cfg.Limits.MaxTxRetries = 3
	cfg.Limits.RetryDelay = time.Millisecond
	cfg.Limits.ActivationTimeout = time.Second
	cfg.Limits.PlacementScanLimit = 1000
	cfg.Products = []config.Product{
		{Name: "Starter Pack", MRP: decimal.NewFromInt(1250), DP: decimal.NewFromInt(1000), BV: decimal.NewFromInt(10)},
	}

	members := membermemory.NewMemberRepository()
	msvc := memberservice.NewMemberService(members, cfg)
	require.NoError(t, msvc.EnsureRoot(ctx))
	svc := service.NewActivationService(members, txnmemory.NewTransactionRepository(), cfg)

	env := &testEnv{members: members}
	for _, reg := range []struct {
		name string
		side membermodels.Side
		dst  **membermodels.Member
	}{
		{"Alice", membermodels.SideLeft, &env.alice},
		{"Bob", membermodels.SideRight, &env.bob},
	} {
		resp, err := msvc.Register(ctx, &membermodels.RegisterRequest{
			SponsorCode: cfg.Root.MemberCode,
			Side:        reg.side,
			FullName:    reg.name,
		})
		require.NoError(t, err)
		m, err := members.GetByID(ctx, resp.MemberID)
		require.NoError(t, err)
		*reg.dst = m
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Authenticate(testSecret))
	NewActivationHandler(svc).RegisterRoutes(router.Group("/api/v1"))
	env.router = router
	return env
}

func (e *testEnv) token(t *testing.T, memberID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  memberID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) fund(t *testing.T, id string, amount int64) {
	t.Helper()
	ctx := context.Background()
	m, err := e.members.GetByID(ctx, id)
	require.NoError(t, err)
	m.WalletBalance = decimal.NewFromInt(amount)
	require.NoError(t, e.members.Update(ctx, m))
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestActivateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, env.alice.ID, 10000)

	w := env.do(http.MethodPost, "/api/v1/packages/activate", env.token(t, env.alice.ID, "member"),
		models.ActivateRequest{TargetID: env.bob.ID, ProductName: "Starter Pack", Quantity: 1})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.ActivateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.PaymentRef)

	bob, err := env.members.GetByID(context.Background(), env.bob.ID)
	require.NoError(t, err)
	require.True(t, bob.Active)

	// Activating twice conflicts.
	w = env.do(http.MethodPost, "/api/v1/packages/activate", env.token(t, env.alice.ID, "member"),
		models.ActivateRequest{TargetID: env.bob.ID, ProductName: "Starter Pack", Quantity: 1})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestActivateEndpointInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/packages/activate", env.token(t, env.alice.ID, "member"),
		models.ActivateRequest{TargetID: env.bob.ID, ProductName: "Starter Pack", Quantity: 1})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPurchaseAndListTransactions(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.token(t, env.alice.ID, "member")

	w := env.do(http.MethodPost, "/api/v1/packages/purchase", aliceToken,
		models.PurchaseRequest{ProductName: "Starter Pack", Quantity: 2})
	require.Equal(t, http.StatusCreated, w.Code)

	var txn models.PackageTransaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txn))
	require.Equal(t, models.StatusPending, txn.Status)

	w = env.do(http.MethodGet, "/api/v1/transactions/me", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listed []models.PackageTransaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	// Bob cannot read Alice's transaction.
	w = env.do(http.MethodGet, "/api/v1/transactions/"+txn.ID, env.token(t, env.bob.ID, "member"), nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	// Admin stats includes the pending purchase.
	w = env.do(http.MethodGet, "/api/v1/admin/transactions/stats", env.token(t, "admin-1", "admin"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats models.TransactionStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.Pending)
}
