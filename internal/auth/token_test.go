package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims *Claims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	validator := NewTokenValidator(testSecret)

	claims := &Claims{
		ID:    "user-1",
		Email: "approver@example.com",
		Role:  RoleApprovalAuthority,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tokenString := signToken(t, claims, testSecret)

	got, err := validator.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)
	assert.Equal(t, "approver@example.com", got.Email)
	assert.Equal(t, RoleApprovalAuthority, got.Role)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	validator := NewTokenValidator(testSecret)
	tokenString := signToken(t, &Claims{ID: "u"}, "other-secret")

	_, err := validator.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	validator := NewTokenValidator(testSecret)
	claims := &Claims{
		ID: "u",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	tokenString := signToken(t, claims, testSecret)

	_, err := validator.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestActorCanApprove(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{RoleApprovalAuthority, true},
		{RoleBoth, true},
		{"Approval_Authority", true},
		{"creator", false},
		{"", false},
	}
	for _, tt := range tests {
		actor := &Actor{Role: tt.role}
		assert.Equal(t, tt.want, actor.CanApprove(), "role %q", tt.role)
	}
}

func setupAuthRouter(validator *TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(validator))
	r.GET("/whoami", func(c *gin.Context) {
		actor := ActorFromContext(c.Request.Context())
		if actor == nil {
			c.JSON(http.StatusOK, gin.H{"email": ""})
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": actor.Email})
	})
	return r
}

func TestMiddleware(t *testing.T) {
	validator := NewTokenValidator(testSecret)
	router := setupAuthRouter(validator)

	t.Run("缺少令牌返回 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("有效令牌放行并注入身份", func(t *testing.T) {
		claims := &Claims{
			Email: "approver@example.com",
			Role:  RoleBoth,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, claims, testSecret))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "approver@example.com")
	})

	t.Run("校验器为空时放行", func(t *testing.T) {
		open := setupAuthRouter(nil)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		open.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireApprovalAuthority(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := NewTokenValidator(testSecret)
	r := gin.New()
	r.Use(Middleware(validator), RequireApprovalAuthority())
	r.POST("/approve", func(c *gin.Context) { c.Status(http.StatusOK) })

	makeReq := func(role string) *httptest.ResponseRecorder {
		claims := &Claims{
			Email: "user@example.com",
			Role:  role,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/approve", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, claims, testSecret))
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, makeReq(RoleApprovalAuthority).Code)
	assert.Equal(t, http.StatusOK, makeReq(RoleBoth).Code)
	assert.Equal(t, http.StatusForbidden, makeReq("creator").Code)
}
