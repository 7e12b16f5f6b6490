package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// 角色常量,与原前端的角色约定一致
const (
	RoleApprovalAuthority = "approval_authority"
	RoleBoth              = "both"
)

// Actor 已认证的操作者身份
// 令牌签发在本系统之外,这里只消费已认证的身份
type Actor struct {
	ID    string
	Email string
	Role  string
}

// CanApprove 判断操作者是否具备审批权限
func (a *Actor) CanApprove() bool {
	role := strings.ToLower(a.Role)
	return role == RoleApprovalAuthority || role == RoleBoth
}

// Claims 访问令牌声明
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator HS256 访问令牌校验器
type TokenValidator struct {
	secret []byte
}

// NewTokenValidator 创建令牌校验器
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

// ValidateToken 校验令牌并返回声明
func (v *TokenValidator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// actorKey context 中存放操作者身份的键
type actorKey struct{}

// WithActor 将操作者身份放入 context
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext 从 context 取出操作者身份,未认证时返回 nil
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorKey{}).(*Actor)
	return actor
}
