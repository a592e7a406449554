package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"contact_hub/internal/domain"
	"contact_hub/internal/service"
	"contact_hub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const staffContextKey = "staff"

// StaffClaims - claims токена сотрудника, выпущенного внешним Auth-сервисом
type StaffClaims struct {
	StaffID     string `json:"staff_id"`
	TenantID    string `json:"tenant_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет HMAC-подписанные JWT сотрудников
type AuthMiddleware struct {
	jwtSecret []byte
	issuer    string
	log       logger.Logger
}

func NewAuthMiddleware(jwtSecret, issuer string, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: []byte(jwtSecret),
		issuer:    issuer,
		log:       log,
	}
}

// RequireStaff требует валидный токен. Для websocket допускается ?token=
func (m *AuthMiddleware) RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := m.parseToken(tokenString)
		if err != nil {
			m.log.Warn("Token validation failed", "error", err.Error())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		staffID, err := uuid.Parse(claims.StaffID)
		if err != nil || claims.TenantID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid staff claims in token"})
			c.Abort()
			return
		}

		staff := &domain.StaffMember{
			ID:          staffID,
			TenantID:    claims.TenantID,
			DisplayName: claims.DisplayName,
			Role:        claims.Role,
		}
		c.Set(staffContextKey, staff)
		c.Request = c.Request.WithContext(service.ContextWithActor(c.Request.Context(), staff))

		c.Next()
	}
}

// RequireRole пропускает только перечисленные роли; ставится после RequireStaff
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		staff, ok := StaffFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}
		for _, role := range roles {
			if staff.Role == role {
				c.Next()
				return
			}
		}

		m.log.Warn("Staff role not permitted", "staff_id", staff.ID, "role", staff.Role)
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
	}
}

func StaffFromContext(c *gin.Context) (*domain.StaffMember, bool) {
	v, ok := c.Get(staffContextKey)
	if !ok {
		return nil, false
	}
	staff, ok := v.(*domain.StaffMember)
	return staff, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, true
		}
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (m *AuthMiddleware) parseToken(tokenString string) (*StaffClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &StaffClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*StaffClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token claims")
}
