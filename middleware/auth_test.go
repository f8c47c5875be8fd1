package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/AnTengye/contractscore/config"
	"github.com/AnTengye/contractscore/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{JWTSecret: "test-secret-key", TokenExpireHours: 24}
}

func TestGenerateToken(t *testing.T) {
	cfg := testAuthConfig()

	token, expiresAt, err := GenerateToken("analyst1", RoleAnalyst, cfg)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Error("Expected non-empty token")
	}

	expectedExpiry := time.Now().Add(24 * time.Hour)
	if expiresAt.Before(expectedExpiry.Add(-time.Minute)) || expiresAt.After(expectedExpiry.Add(time.Minute)) {
		t.Errorf("Expiry time %v is not within expected range of %v", expiresAt, expectedExpiry)
	}

	claims, err := ParseToken(token, cfg)
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}
	if claims.Username != "analyst1" || claims.Role != RoleAnalyst {
		t.Errorf("Expected analyst1/analyst, got %s/%s", claims.Username, claims.Role)
	}
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	cfg := testAuthConfig()
	claims := Claims{
		Username: "mallory",
		Role:     RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	if _, err := ParseToken(token, cfg); err == nil {
		t.Error("Expected HS512 token to be rejected")
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testAuthConfig()

	token, _, err := GenerateToken("analyst1", RoleAnalyst, cfg)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	expired := Claims{
		Username: "analyst1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	expiredToken, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte(cfg.JWTSecret))

	router := gin.New()
	router.Use(AuthMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) {
		ctxUser, _ := c.Request.Context().Value(logger.UsernameKey).(string)
		c.JSON(http.StatusOK, gin.H{
			"username": GetUsername(c),
			"role":     GetRole(c),
			"ctx_user": ctxUser,
		})
	})

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
		{"expired token", "Bearer " + expiredToken, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusOK {
				body := w.Body.String()
				for _, want := range []string{`"username":"analyst1"`, `"role":"analyst"`, `"ctx_user":"analyst1"`} {
					if !strings.Contains(body, want) {
						t.Errorf("Expected %s in %s", want, body)
					}
				}
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	cfg := testAuthConfig()
	router := gin.New()
	router.Use(AuthMiddleware(cfg))
	router.POST("/export", RequireRole(RoleAnalyst), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		role           string
		expectedStatus int
	}{
		{RoleAnalyst, http.StatusNoContent},
		{RoleAdmin, http.StatusNoContent},
		{RoleReviewer, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			token, _, _ := GenerateToken("user", tt.role, cfg)
			req := httptest.NewRequest(http.MethodPost, "/export", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestGetUsernameEmpty(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if GetUsername(c) != "" || GetRole(c) != "" {
		t.Error("Expected empty username and role")
	}
}
