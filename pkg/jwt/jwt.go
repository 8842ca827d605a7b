// Package jwt 提供 JWT Token 的生成和验证功能
// 会话 Token 用于用户认证，数据存储 Token 用于把访问限定在某个组织范围内
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 定义错误类型
var (
	ErrInvalidToken           = errors.New("invalid token")                // Token 无效
	ErrExpiredToken           = errors.New("token has expired")            // Token 已过期
	ErrDatastoreSecretMissing = errors.New("datastore secret is not set") // 未配置数据存储签名密钥
)

// Token 类型，写在 Subject 中
const (
	SubjectAccess    = "access"
	SubjectRefresh   = "refresh"
	SubjectDatastore = "datastore"
)

const issuer = "pocket-chat"

// UserClaims 用户会话 JWT 的声明（Payload）
type UserClaims struct {
	UserID               string `json:"user_id"`                          // 用户 ID
	Email                string `json:"email"`                            // 邮箱
	Name                 string `json:"name"`                             // 显示名称
	ActiveOrganizationID string `json:"active_organization_id,omitempty"` // 当前组织，空表示个人模式
	jwt.RegisteredClaims                                                  // 标准声明（过期时间、jti 等）
}

// DatastoreClaims 数据存储访问 Token 的声明
type DatastoreClaims struct {
	UserID         string `json:"user_id"`         // 用户 ID
	OrganizationID string `json:"organization_id"` // 组织范围，个人模式下等于用户 ID
	Role           string `json:"role"`            // 固定为 authenticated
	jwt.RegisteredClaims
}

// JWTService 提供 JWT 相关操作
type JWTService struct {
	secret          []byte        // 会话 Token 签名密钥
	accessExpire    time.Duration // Access Token 过期时间
	refreshExpire   time.Duration // Refresh Token 过期时间
	datastoreSecret []byte        // 数据存储 Token 签名密钥
	datastoreExpire time.Duration // 数据存储 Token 过期时间
}

// NewJWTService 创建 JWTService 实例
// 参数:
//   - secret: 会话 Token 签名密钥，至少 32 个字符
//   - accessExpire: Access Token 过期时间
//   - refreshExpire: Refresh Token 过期时间
//
// 返回:
//   - *JWTService: JWT 服务实例
func NewJWTService(secret string, accessExpire, refreshExpire time.Duration) *JWTService {
	return &JWTService{
		secret:          []byte(secret),
		accessExpire:    accessExpire,
		refreshExpire:   refreshExpire,
		datastoreExpire: 5 * time.Minute,
	}
}

// WithDatastore 设置数据存储 Token 的签名密钥和过期时间
func (s *JWTService) WithDatastore(secret string, expire time.Duration) *JWTService {
	s.datastoreSecret = []byte(secret)
	if expire > 0 {
		s.datastoreExpire = expire
	}
	return s
}

// GenerateAccessToken 生成 Access Token
// 参数:
//   - userID: 用户 ID
//   - email: 邮箱
//   - name: 显示名称
//   - activeOrgID: 当前组织，空字符串表示个人模式
//
// 返回:
//   - string: JWT Token 字符串
//   - error: 生成错误
func (s *JWTService) GenerateAccessToken(userID, email, name, activeOrgID string) (string, error) {
	claims := UserClaims{
		UserID:               userID,
		Email:                email,
		Name:                 name,
		ActiveOrganizationID: activeOrgID,
		RegisteredClaims:     s.registered(SubjectAccess, s.accessExpire),
	}

	// jwt.SigningMethodHS256: 使用 HMAC SHA256 算法签名
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// GenerateRefreshToken 生成 Refresh Token
// 用于刷新 Access Token，同样携带当前组织
func (s *JWTService) GenerateRefreshToken(userID, email, name, activeOrgID string) (string, error) {
	claims := UserClaims{
		UserID:               userID,
		Email:                email,
		Name:                 name,
		ActiveOrganizationID: activeOrgID,
		RegisteredClaims:     s.registered(SubjectRefresh, s.refreshExpire),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// GenerateDatastoreToken 签发数据存储访问 Token
// 参数:
//   - userID: 用户 ID
//   - organizationID: 组织范围
//
// 返回:
//   - string: JWT Token 字符串
//   - error: 未配置密钥或签名失败
func (s *JWTService) GenerateDatastoreToken(userID, organizationID string) (string, error) {
	if len(s.datastoreSecret) == 0 {
		return "", ErrDatastoreSecretMissing
	}

	claims := DatastoreClaims{
		UserID:           userID,
		OrganizationID:   organizationID,
		Role:             "authenticated",
		RegisteredClaims: s.registered(SubjectDatastore, s.datastoreExpire),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.datastoreSecret)
}

// ValidateToken 验证 Access Token
// 参数:
//   - tokenString: JWT Token 字符串
//
// 返回:
//   - *UserClaims: Token 中的声明信息
//   - error: 验证错误（无效或已过期）
func (s *JWTService) ValidateToken(tokenString string) (*UserClaims, error) {
	claims, err := parse(tokenString, s.secret, &UserClaims{})
	if err != nil {
		return nil, err
	}
	if claims.Subject != SubjectAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateRefreshToken 验证 Refresh Token
func (s *JWTService) ValidateRefreshToken(tokenString string) (*UserClaims, error) {
	claims, err := parse(tokenString, s.secret, &UserClaims{})
	if err != nil {
		return nil, err
	}
	if claims.Subject != SubjectRefresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateDatastoreToken 验证数据存储访问 Token
func (s *JWTService) ValidateDatastoreToken(tokenString string) (*DatastoreClaims, error) {
	if len(s.datastoreSecret) == 0 {
		return nil, ErrDatastoreSecretMissing
	}
	claims, err := parse(tokenString, s.datastoreSecret, &DatastoreClaims{})
	if err != nil {
		return nil, err
	}
	if claims.Subject != SubjectDatastore {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetAccessExpire 获取 Access Token 过期时间
func (s *JWTService) GetAccessExpire() time.Duration {
	return s.accessExpire
}

func (s *JWTService) registered(subject string, expire time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		// ID: 唯一标识，登出时按它加入黑名单
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(now.Add(expire)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    issuer,
		Subject:   subject,
	}
}

// parse 解析并校验 Token，只接受 HMAC 签名
func parse[T jwt.Claims](tokenString string, secret []byte, claims T) (T, error) {
	var zero T
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return zero, ErrExpiredToken
		}
		return zero, ErrInvalidToken
	}
	if !token.Valid {
		return zero, ErrInvalidToken
	}

	return claims, nil
}
