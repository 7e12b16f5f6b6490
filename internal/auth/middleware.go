package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Middleware 从 Authorization 头解析 Bearer 令牌并把操作者身份放入请求 context
// validator 为 nil 时直接放行(认证未启用)
func Middleware(validator *TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "missing authorization header",
			})
			return
		}

		tokenString := header
		if strings.HasPrefix(header, "Bearer ") {
			tokenString = strings.TrimPrefix(header, "Bearer ")
		}

		claims, err := validator.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "invalid or expired token",
			})
			return
		}

		actor := &Actor{ID: claims.ID, Email: claims.Email, Role: claims.Role}
		c.Request = c.Request.WithContext(WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// RequireApprovalAuthority 审批接口的角色门禁
// 认证未启用(context 中无操作者)时放行,由部署方决定是否开启
func RequireApprovalAuthority() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFromContext(c.Request.Context())
		if actor == nil {
			c.Next()
			return
		}
		if !actor.CanApprove() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    http.StatusForbidden,
				"message": "approval authority required",
			})
			return
		}
		c.Next()
	}
}
