package app

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// 默认 Token 签发者
const DefaultTokenIssuer = "harvester-service"

const operatorContextKey = "operator_token"

// TokenConfig 定义 Token 管理器的配置
type TokenConfig struct {
	SecretKey string        // JWT 签名密钥
	Expiry    time.Duration // Token 过期时间，默认 30 天
	Issuer    string        // Token 签发者
}

// TokenManager issues and verifies operator tokens for the admin API
// TokenManager 签发并校验管理 API 的操作员令牌
type TokenManager interface {
	Generate(operator string) (string, error)
	Parse(token string) (*OperatorClaims, error)
	Enabled() bool
}

type tokenManager struct {
	config TokenConfig
}

// NewTokenManager 创建一个新的 TokenManager 实例
func NewTokenManager(cfg TokenConfig) TokenManager {
	if cfg.Expiry == 0 {
		cfg.Expiry = 30 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultTokenIssuer
	}
	return &tokenManager{config: cfg}
}

// OperatorClaims is the JWT payload of an operator token
type OperatorClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// Enabled reports whether a secret is configured; without one the API is open
// Enabled 未配置密钥时 API 不做鉴权
func (t *tokenManager) Enabled() bool {
	return t.config.SecretKey != ""
}

// Generate 生成一个新的 JWT Token
func (t *tokenManager) Generate(operator string) (string, error) {
	now := time.Now()
	claims := &OperatorClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    t.config.Issuer,
			Subject:   "operator-token",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(t.config.SecretKey))
}

// Parse 解析 JWT Token 并返回操作员信息
func (t *tokenManager) Parse(token string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}

	parsedToken, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(t.config.SecretKey), nil
	}, jwt.WithIssuer(t.config.Issuer))
	if err != nil {
		return nil, err
	}

	if !parsedToken.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// SetOperator stores the verified claims on the request
func SetOperator(ctx *gin.Context, claims *OperatorClaims) {
	ctx.Set(operatorContextKey, claims)
}

// GetOperator extracts the operator name from the request context.
func GetOperator(ctx *gin.Context) (out string) {
	if v, exist := ctx.Get(operatorContextKey); exist {
		if claims, ok := v.(*OperatorClaims); ok {
			out = claims.Operator
		}
	}
	return
}
