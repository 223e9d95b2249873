package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"habbo-sync/internal/habbo"
	"habbo-sync/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealth_BasicResponse(t *testing.T) {
	router := gin.New()

	// handler mock simulando estado saudável
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "connected",
			"redis":    "connected",
		})
	})

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("expected JSON content type, got %s", w.Header().Get("Content-Type"))
	}
}

func TestTracked_RequiresValidParams(t *testing.T) {
	router := gin.New()

	router.GET("/tracked/:hotel/:habbo_id", func(c *gin.Context) {
		if err := security.ValidateHabboID(c.Param("habbo_id")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "invalid_habbo_id",
					"message": "habbo_id invalido",
				},
			})
			return
		}
		if _, err := habbo.NormalizeHotel(c.Param("hotel")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "invalid_hotel",
					"message": "hotel desconhecido",
				},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	tests := []struct {
		name     string
		path     string
		expected int
	}{
		{"valid br", "/tracked/br/hhbr-abc123def456", http.StatusOK},
		{"valid canonical domain", "/tracked/com.br/hhbr-abc123def456", http.StatusOK},
		{"unknown hotel", "/tracked/xx/hhbr-abc123def456", http.StatusBadRequest},
		{"bad id prefix", "/tracked/br/zzbr-abc123def456", http.StatusBadRequest},
		{"id too short", "/tracked/br/hh-a", http.StatusBadRequest},
		{"id with invalid chars", "/tracked/br/hhbr-abc$123", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestEnsureTracked_RejectsBadBody(t *testing.T) {
	router := gin.New()

	router.POST("/tracked", func(c *gin.Context) {
		var req trackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "invalid_body",
					"message": "corpo json invalido",
				},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"valid body", `{"habbo_name":"jal0usie","habbo_id":"hhbr-abc123def456","hotel":"br"}`, http.StatusOK},
		{"invalid json", `{"habbo_name":`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("POST", "/tracked", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean string", "hhbr-abc123", "hhbr-abc123"},
		{"control chars removed", "abc\x00\x01def", "abcdef"},
		{"newline preserved", "abc\ndef", "abc\ndef"},
		{"tab preserved", "a\tb", "a\tb"},
		{"unicode preserved", "usuário", "usuário"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeInput(tt.input); got != tt.expected {
				t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestAdminAuth_HeaderFormats(t *testing.T) {
	// o middleware real precisa do Server; aqui validamos só a extração
	// da chave nos dois formatos aceitos
	extract := func(r *http.Request) string {
		adminKey := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
		if adminKey == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(auth, "Bearer ") {
				adminKey = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		return adminKey
	}

	req, _ := http.NewRequest("POST", "/admin/sync/run", nil)
	req.Header.Set("X-Admin-Key", "secret123")
	if got := extract(req); got != "secret123" {
		t.Errorf("X-Admin-Key extraction = %q", got)
	}

	req, _ = http.NewRequest("POST", "/admin/sync/run", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	if got := extract(req); got != "secret123" {
		t.Errorf("Bearer extraction = %q", got)
	}

	req, _ = http.NewRequest("POST", "/admin/sync/run", nil)
	if got := extract(req); got != "" {
		t.Errorf("missing headers should extract empty, got %q", got)
	}
}
