package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"github.com/mikepea/leaddesk/pkg/leaddesk/validation"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupTestRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if err := validation.Register(); err != nil {
		t.Fatalf("Failed to register validators: %v", err)
	}
	r := gin.New()
	NewHandler(db).RegisterRoutes(r.Group("/api"))
	return r
}

func createTestUser(t *testing.T, db *gorm.DB, email string, role models.Role) models.User {
	user := models.User{Email: email, PasswordHash: "x", FullName: email, Role: role}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createRule(t *testing.T, db *gorm.DB, source, cc string, agentID uint, priority int, active bool) models.AssignmentRule {
	rule := models.AssignmentRule{SourceName: source, CountryCode: cc, AssignedAgentID: agentID, Priority: priority, IsActive: active}
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("Failed to create rule: %v", err)
	}
	return rule
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func rulePath(id uint, suffix string) string {
	return "/api/rules/" + strconv.FormatUint(uint64(id), 10) + suffix
}

func TestWinnerHighestPriority(t *testing.T) {
	db := setupTestDB(t)
	x := createTestUser(t, db, "x@example.com", models.RoleAgent)
	y := createTestUser(t, db, "y@example.com", models.RoleAgent)
	createRule(t, db, "AFF1", "IT", y.ID, 1, true)
	createRule(t, db, "AFF1", "IT", x.ID, 5, true)

	rule, err := Winner(context.Background(), db, "AFF1", "IT")
	if err != nil {
		t.Fatalf("Winner failed: %v", err)
	}
	if rule == nil || rule.AssignedAgentID != x.ID {
		t.Fatalf("Expected agent %d to win, got %+v", x.ID, rule)
	}
	if rule.AssignedAgent.FullName != x.FullName {
		t.Errorf("Expected agent preloaded, got %q", rule.AssignedAgent.FullName)
	}
}

func TestWinnerTieBreaksOnAge(t *testing.T) {
	db := setupTestDB(t)
	older := createTestUser(t, db, "older@example.com", models.RoleAgent)
	newer := createTestUser(t, db, "newer@example.com", models.RoleAgent)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	db.Create(&models.AssignmentRule{SourceName: "AFF1", CountryCode: "IT", AssignedAgentID: newer.ID, Priority: 3, IsActive: true, CreatedAt: base.Add(time.Hour)})
	db.Create(&models.AssignmentRule{SourceName: "AFF1", CountryCode: "IT", AssignedAgentID: older.ID, Priority: 3, IsActive: true, CreatedAt: base})

	rule, _ := Winner(context.Background(), db, "AFF1", "IT")
	if rule == nil || rule.AssignedAgentID != older.ID {
		t.Errorf("Expected oldest rule to win the tie, got %+v", rule)
	}
}

func TestWinnerIgnoresInactiveAndOtherSources(t *testing.T) {
	db := setupTestDB(t)
	a := createTestUser(t, db, "a@example.com", models.RoleAgent)
	b := createTestUser(t, db, "b@example.com", models.RoleAgent)
	createRule(t, db, "AFF1", "IT", a.ID, 10, false)
	createRule(t, db, "AFF2", "IT", b.ID, 10, true)

	rule, err := Winner(context.Background(), db, "AFF1", "IT")
	if err != nil {
		t.Fatalf("Winner failed: %v", err)
	}
	if rule != nil {
		t.Errorf("Expected no winner, got %+v", rule)
	}
}

func TestWinnerCountryCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	a := createTestUser(t, db, "a@example.com", models.RoleAgent)
	createRule(t, db, "AFF1", "de", a.ID, 1, true)

	rule, _ := Winner(context.Background(), db, "AFF1", "DE")
	if rule == nil {
		t.Error("Expected lowercase stored country to match")
	}
	rule, _ = Winner(context.Background(), db, "aff1", "DE")
	if rule != nil {
		t.Error("Expected source match to be exact")
	}
}

func TestCreateRule(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	agent := createTestUser(t, db, "agent@example.com", models.RoleAgent)

	resp := doJSON(router, "POST", "/api/rules", RuleRequest{
		SourceName:      " AFF1 ",
		CountryCode:     "Italy",
		AssignedAgentID: agent.ID,
		Priority:        5,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var rule RuleResponse
	json.Unmarshal(resp.Body.Bytes(), &rule)
	if rule.SourceName != "AFF1" || rule.CountryCode != "IT" {
		t.Errorf("Expected normalised AFF1/IT, got %s/%s", rule.SourceName, rule.CountryCode)
	}
	if !rule.IsActive {
		t.Error("Expected new rule to be active")
	}
	if rule.AssignedAgent != agent.FullName {
		t.Errorf("Expected agent name %s, got %s", agent.FullName, rule.AssignedAgent)
	}
}

func TestCreateRuleDuplicate(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	agent := createTestUser(t, db, "agent@example.com", models.RoleAgent)
	createRule(t, db, "AFF1", "IT", agent.ID, 1, true)

	resp := doJSON(router, "POST", "/api/rules", RuleRequest{SourceName: "AFF1", CountryCode: "it", AssignedAgentID: agent.ID, Priority: 9})
	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	agent := createTestUser(t, db, "agent@example.com", models.RoleAgent)

	tests := []struct {
		name string
		req  RuleRequest
	}{
		{"unknown country", RuleRequest{SourceName: "AFF1", CountryCode: "Atlantis", AssignedAgentID: agent.ID}},
		{"missing agent", RuleRequest{SourceName: "AFF1", CountryCode: "IT", AssignedAgentID: 999}},
		{"admin target", RuleRequest{SourceName: "AFF1", CountryCode: "IT", AssignedAgentID: admin.ID}},
		{"blank source", RuleRequest{SourceName: "   ", CountryCode: "IT", AssignedAgentID: agent.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(router, "POST", "/api/rules", tt.req)
			if resp.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", resp.Code, resp.Body.String())
			}
		})
	}
}

func TestUpdateToggleDeleteRule(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	a := createTestUser(t, db, "a@example.com", models.RoleAgent)
	b := createTestUser(t, db, "b@example.com", models.RoleManager)
	rule := createRule(t, db, "AFF1", "IT", a.ID, 1, true)

	resp := doJSON(router, "PUT", rulePath(rule.ID, ""), RuleRequest{SourceName: "AFF1", CountryCode: "FR", AssignedAgentID: b.ID, Priority: 7})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var stored models.AssignmentRule
	db.First(&stored, rule.ID)
	if stored.CountryCode != "FR" || stored.AssignedAgentID != b.ID || stored.Priority != 7 {
		t.Errorf("Unexpected rule after update: %+v", stored)
	}

	// Updating a rule to its own triple is not a duplicate
	resp = doJSON(router, "PUT", rulePath(rule.ID, ""), RuleRequest{SourceName: "AFF1", CountryCode: "FR", AssignedAgentID: b.ID, Priority: 8})
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}

	resp = doJSON(router, "POST", rulePath(rule.ID, "/toggle"), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	db.First(&stored, rule.ID)
	if stored.IsActive {
		t.Error("Expected rule to be inactive after toggle")
	}

	resp = doJSON(router, "DELETE", rulePath(rule.ID, ""), nil)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}
	resp = doJSON(router, "DELETE", rulePath(rule.ID, ""), nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestListRules(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	a := createTestUser(t, db, "a@example.com", models.RoleAgent)
	createRule(t, db, "AFF1", "IT", a.ID, 1, true)
	createRule(t, db, "AFF1", "FR", a.ID, 9, true)
	createRule(t, db, "AFF2", "IT", a.ID, 5, true)

	resp := doJSON(router, "GET", "/api/rules?source=AFF1", nil)
	var rules []RuleResponse
	json.Unmarshal(resp.Body.Bytes(), &rules)
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(rules))
	}
	if rules[0].Priority != 9 {
		t.Errorf("Expected highest priority first, got %d", rules[0].Priority)
	}
}
