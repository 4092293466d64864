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
	"mlm-compensation-backend/internal/features/member/models"
	memberrepo "mlm-compensation-backend/internal/features/member/repository"
	"mlm-compensation-backend/internal/features/member/repository/memory"
	"mlm-compensation-backend/internal/features/member/service"
)

const testSecret = "test-secret"

func testRouter(t *testing.T) (*gin.Engine, memberrepo.MemberRepository, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Root.MemberCode = "1000000001"
	cfg.Root.FullName = "Company Root"
	cfg.Plan.DirectRate = decimal.RequireFromString("0.10")
	cfg.Plan.FighterRate = decimal.RequireFromString("0.05")
	cfg.Plan.MatchingRate = decimal.RequireFromString("0.30")
	cfg.Plan.BVPointValue = decimal.NewFromInt(10)
	cfg.Limits.MaxTxRetries = 3
	cfg.Limits.RetryDelay = time.Millisecond
	cfg.Limits.PlacementScanLimit = 1000

	repo := memory.NewMemberRepository()
	svc := service.NewMemberService(repo, cfg)
	require.NoError(t, svc.EnsureRoot(context.Background()))

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Authenticate(testSecret))
	NewMemberHandler(svc).RegisterRoutes(router.Group("/api/v1"))
	return router, repo, cfg
}

func mintToken(t *testing.T, memberID, role string) string {
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

func doJSON(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
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
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterEndpoint(t *testing.T) {
	router, _, cfg := testRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/members/register", "", models.RegisterRequest{
		SponsorCode: cfg.Root.MemberCode,
		Side:        models.SideLeft,
		FullName:    "Alice",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.MemberID)
	require.Len(t, resp.MemberCode, 10)
}

func TestRegisterEndpointRejectsBadSponsor(t *testing.T) {
	router, _, _ := testRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/members/register", "", models.RegisterRequest{
		SponsorCode: "0000000000",
		Side:        models.SideLeft,
		FullName:    "Nobody",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMeRequiresAuth(t *testing.T) {
	router, _, _ := testRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/members/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetMeReturnsProfile(t *testing.T) {
	router, repo, cfg := testRouter(t)

	root, err := repo.GetByCode(context.Background(), cfg.Root.MemberCode)
	require.NoError(t, err)

	w := doJSON(router, http.MethodGet, "/api/v1/members/me", mintToken(t, root.ID, "member"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.MemberResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, cfg.Root.MemberCode, resp.MemberCode)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	router, repo, cfg := testRouter(t)

	root, err := repo.GetByCode(context.Background(), cfg.Root.MemberCode)
	require.NoError(t, err)

	w := doJSON(router, http.MethodGet, "/api/v1/admin/members", mintToken(t, root.ID, "member"), nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/admin/members", mintToken(t, root.ID, "admin"), nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDeactivateEndpoint(t *testing.T) {
	router, repo, cfg := testRouter(t)
	ctx := context.Background()

	root, err := repo.GetByCode(ctx, cfg.Root.MemberCode)
	require.NoError(t, err)
	admin := mintToken(t, root.ID, "admin")

	w := doJSON(router, http.MethodPost, "/api/v1/admin/members/"+root.ID+"/deactivate", admin,
		gin.H{"reason": "compliance hold"})
	require.Equal(t, http.StatusNoContent, w.Code)

	updated, err := repo.GetByID(ctx, root.ID)
	require.NoError(t, err)
	require.True(t, updated.Suspended)

	// Conflict on repeat surfaces as 409.
	w = doJSON(router, http.MethodPost, "/api/v1/admin/members/"+root.ID+"/deactivate", admin,
		gin.H{"reason": "again"})
	require.Equal(t, http.StatusConflict, w.Code)
}
