package statuses

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/auth"
	"github.com/mikepea/leaddesk/pkg/leaddesk/config"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var tokens = auth.NewTokens(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	if err := Seed(db); err != nil {
		t.Fatalf("Failed to seed statuses: %v", err)
	}
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	api.Use(auth.AuthMiddleware(tokens))
	NewHandler(db).RegisterRoutes(api)
	return r
}

func doJSON(router *gin.Engine, method, path string, body interface{}, role models.Role) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	token, _ := tokens.GenerateToken(1, "staff@example.com", role)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestSeedIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := Seed(db); err != nil {
		t.Fatalf("Second seed failed: %v", err)
	}

	var count int64
	db.Model(&models.LeadStatus{}).Count(&count)
	if count != int64(len(Defaults)) {
		t.Errorf("Expected %d statuses, got %d", len(Defaults), count)
	}
}

func TestListStatuses(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	db.Create(&models.Lead{FirstName: "A", LastName: "B", Email: "a@example.com", Status: models.StatusNew})
	db.Create(&models.Lead{FirstName: "C", LastName: "D", Email: "c@example.com", Status: models.StatusNew})

	resp := doJSON(router, "GET", "/api/statuses", nil, models.RoleAgent)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var statuses []StatusResponse
	json.Unmarshal(resp.Body.Bytes(), &statuses)
	if len(statuses) != 3 {
		t.Fatalf("Expected 3 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != models.StatusNew || statuses[0].LeadCount != 2 || !statuses[0].IsDefault {
		t.Errorf("Unexpected first status %+v", statuses[0])
	}
	if statuses[1].LeadCount != 0 {
		t.Errorf("Expected unused status to count 0, got %d", statuses[1].LeadCount)
	}
}

func TestCreateStatus(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	resp := doJSON(router, "POST", "/api/statuses", CreateStatusRequest{Name: "No Answer", Color: "#FF0000"}, models.RoleAdmin)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created StatusResponse
	json.Unmarshal(resp.Body.Bytes(), &created)
	if created.Color != "#ff0000" {
		t.Errorf("Expected lowercased color, got %s", created.Color)
	}

	tests := []struct {
		name string
		req  CreateStatusRequest
		role models.Role
		want int
	}{
		{"duplicate", CreateStatusRequest{Name: "No Answer", Color: "#000000"}, models.RoleAdmin, http.StatusConflict},
		{"bad color", CreateStatusRequest{Name: "Busy", Color: "red"}, models.RoleAdmin, http.StatusBadRequest},
		{"not admin", CreateStatusRequest{Name: "Busy", Color: "#000000"}, models.RoleDesk, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := doJSON(router, "POST", "/api/statuses", tt.req, tt.role); resp.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, resp.Code)
			}
		})
	}
}

func TestDeleteStatus(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	custom := models.LeadStatus{Name: "Callback", Color: "#000000"}
	db.Create(&custom)
	var seeded models.LeadStatus
	db.Where("name = ?", models.StatusNew).First(&seeded)

	if resp := doJSON(router, "DELETE", fmt.Sprintf("/api/statuses/%d", seeded.ID), nil, models.RoleAdmin); resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 deleting a default, got %d", resp.Code)
	}

	lead := models.Lead{FirstName: "A", LastName: "B", Email: "a@example.com", Status: "Callback"}
	db.Create(&lead)
	if resp := doJSON(router, "DELETE", fmt.Sprintf("/api/statuses/%d", custom.ID), nil, models.RoleAdmin); resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409 deleting a status in use, got %d", resp.Code)
	}

	db.Model(&lead).Update("status", models.StatusNew)
	if resp := doJSON(router, "DELETE", fmt.Sprintf("/api/statuses/%d", custom.ID), nil, models.RoleAdmin); resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}
	if resp := doJSON(router, "DELETE", "/api/statuses/999", nil, models.RoleAdmin); resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}
