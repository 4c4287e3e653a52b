package users

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/auth"
	"github.com/mikepea/leaddesk/pkg/leaddesk/config"
	"github.com/mikepea/leaddesk/pkg/leaddesk/hierarchy"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"github.com/mikepea/leaddesk/pkg/leaddesk/validation"
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
	return db
}

func setupTestRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if err := validation.Register(); err != nil {
		t.Fatalf("Failed to register validators: %v", err)
	}
	r := gin.New()
	handler := NewHandler(db, hierarchy.NewDirectory(db))

	api := r.Group("/api")
	api.Use(auth.AuthMiddleware(tokens))
	handler.RegisterRoutes(api)

	return r
}

func createTestUser(t *testing.T, db *gorm.DB, email string, role models.Role, managerID *uint) models.User {
	hash, _ := auth.HashPassword("password123")
	user := models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     email,
		Role:         role,
		ManagerID:    managerID,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func doJSON(router *gin.Engine, method, path string, body interface{}, user models.User) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	token, _ := tokens.GenerateToken(user.ID, user.Email, user.Role)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func userPath(id uint) string {
	return "/api/users/" + strconv.FormatUint(uint64(id), 10)
}

func TestCreateUser(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin, nil)
	desk := createTestUser(t, db, "desk@example.com", models.RoleDesk, &admin.ID)

	resp := doJSON(router, "POST", "/api/users", CreateUserRequest{
		Email:     "New.Agent@Example.com",
		Password:  "password123",
		FullName:  "New Agent",
		Role:      "agent",
		ManagerID: &desk.ID,
	}, admin)

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response UserResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Email != "new.agent@example.com" {
		t.Errorf("Expected lowercased email, got %s", response.Email)
	}
	if response.Role != models.RoleAgent {
		t.Errorf("Expected role agent, got %s", response.Role)
	}
	if response.ManagerName != desk.FullName {
		t.Errorf("Expected manager name %s, got %s", desk.FullName, response.ManagerName)
	}
}

func TestCreateUserValidation(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin, nil)
	agent := createTestUser(t, db, "agent@example.com", models.RoleAgent, nil)
	missing := uint(999)

	tests := []struct {
		name string
		req  CreateUserRequest
		want int
	}{
		{"unknown role", CreateUserRequest{Email: "a@example.com", Password: "password123", FullName: "A", Role: "owner"}, http.StatusBadRequest},
		{"short password", CreateUserRequest{Email: "a@example.com", Password: "short", FullName: "A", Role: "agent"}, http.StatusBadRequest},
		{"duplicate email", CreateUserRequest{Email: "agent@example.com", Password: "password123", FullName: "A", Role: "agent"}, http.StatusConflict},
		{"missing manager", CreateUserRequest{Email: "b@example.com", Password: "password123", FullName: "B", Role: "agent", ManagerID: &missing}, http.StatusBadRequest},
		{"agent cannot manage", CreateUserRequest{Email: "c@example.com", Password: "password123", FullName: "C", Role: "agent", ManagerID: &agent.ID}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(router, "POST", "/api/users", tt.req, admin)
			if resp.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestUsersRequireAdmin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	manager := createTestUser(t, db, "manager@example.com", models.RoleManager, nil)

	resp := doJSON(router, "GET", "/api/users", nil, manager)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.Code)
	}
}

func TestListUsersFilterByRole(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin, nil)
	createTestUser(t, db, "agent1@example.com", models.RoleAgent, nil)
	createTestUser(t, db, "agent2@example.com", models.RoleAgent, nil)

	resp := doJSON(router, "GET", "/api/users?role=agent", nil, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var users []UserResponse
	json.Unmarshal(resp.Body.Bytes(), &users)
	if len(users) != 2 {
		t.Errorf("Expected 2 agents, got %d", len(users))
	}

	resp = doJSON(router, "GET", "/api/users?role=owner", nil, admin)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestUpdateUserRejectsCycle(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin, nil)
	desk := createTestUser(t, db, "desk@example.com", models.RoleDesk, nil)
	manager := createTestUser(t, db, "manager@example.com", models.RoleManager, &desk.ID)

	// desk -> manager would make the desk report to its own report
	role := "agent"
	resp := doJSON(router, "PUT", userPath(desk.ID), UpdateUserRequest{Role: &role, ManagerID: &manager.ID}, admin)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUpdateUser(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin, nil)
	desk := createTestUser(t, db, "desk@example.com", models.RoleDesk, nil)
	agent := createTestUser(t, db, "agent@example.com", models.RoleAgent, nil)

	name := "Renamed Agent"
	resp := doJSON(router, "PUT", userPath(agent.ID), UpdateUserRequest{FullName: &name, ManagerID: &desk.ID}, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var stored models.User
	db.First(&stored, agent.ID)
	if stored.FullName != name {
		t.Errorf("Expected name %s, got %s", name, stored.FullName)
	}
	if stored.ManagerID == nil || *stored.ManagerID != desk.ID {
		t.Errorf("Expected manager %d, got %v", desk.ID, stored.ManagerID)
	}

	none := uint(0)
	doJSON(router, "PUT", userPath(agent.ID), UpdateUserRequest{ManagerID: &none}, admin)
	db.First(&stored, agent.ID)
	if stored.ManagerID != nil {
		t.Errorf("Expected manager cleared, got %v", *stored.ManagerID)
	}
}

func TestCannotDemoteSelf(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin, nil)

	role := "agent"
	resp := doJSON(router, "PUT", userPath(admin.ID), UpdateUserRequest{Role: &role}, admin)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin, nil)
	desk := createTestUser(t, db, "desk@example.com", models.RoleDesk, nil)
	manager := createTestUser(t, db, "manager@example.com", models.RoleManager, &desk.ID)
	agent := createTestUser(t, db, "agent@example.com", models.RoleAgent, &manager.ID)

	db.Create(&models.Lead{FirstName: "L", LastName: "L", Email: "l@x.io", Status: models.StatusNew, AssignedTo: &manager.ID})
	db.Create(&models.AssignmentRule{SourceName: "AFF1", CountryCode: "IT", AssignedAgentID: manager.ID, Priority: 1, IsActive: true})

	resp := doJSON(router, "DELETE", userPath(manager.ID), nil, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body map[string]interface{}
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body["unassigned_leads"] != float64(1) {
		t.Errorf("Expected 1 unassigned lead, got %v", body["unassigned_leads"])
	}

	var lead models.Lead
	db.First(&lead)
	if lead.AssignedTo != nil {
		t.Error("Expected lead to be unassigned")
	}

	var moved models.User
	db.First(&moved, agent.ID)
	if moved.ManagerID == nil || *moved.ManagerID != desk.ID {
		t.Errorf("Expected agent to move under desk, got %v", moved.ManagerID)
	}

	var rules int64
	db.Model(&models.AssignmentRule{}).Count(&rules)
	if rules != 0 {
		t.Errorf("Expected rules routing to deleted user to be removed, got %d", rules)
	}
}

func TestCannotDeleteSelf(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin, nil)

	resp := doJSON(router, "DELETE", userPath(admin.ID), nil, admin)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestAssignable(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin, nil)
	desk := createTestUser(t, db, "desk@example.com", models.RoleDesk, nil)
	manager := createTestUser(t, db, "manager@example.com", models.RoleManager, &desk.ID)
	agent := createTestUser(t, db, "agent@example.com", models.RoleAgent, &manager.ID)
	createTestUser(t, db, "other@example.com", models.RoleAgent, nil)

	count := func(user models.User) int {
		resp := doJSON(router, "GET", "/api/users/assignable", nil, user)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.Code)
		}
		var users []auth.UserResponse
		json.Unmarshal(resp.Body.Bytes(), &users)
		return len(users)
	}

	if n := count(admin); n != 5 {
		t.Errorf("Admin: expected 5 assignable users, got %d", n)
	}
	if n := count(desk); n != 3 {
		t.Errorf("Desk: expected 3 assignable users, got %d", n)
	}
	if n := count(manager); n != 2 {
		t.Errorf("Manager: expected 2 assignable users, got %d", n)
	}
	if n := count(agent); n != 0 {
		t.Errorf("Agent: expected 0 assignable users, got %d", n)
	}
}

func TestTeamStats(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	manager := createTestUser(t, db, "manager@example.com", models.RoleManager, nil)
	agent := createTestUser(t, db, "agent@example.com", models.RoleAgent, &manager.ID)

	db.Create(&models.Lead{FirstName: "A", LastName: "A", Email: "a@x.io", Status: models.StatusNew, AssignedTo: &agent.ID})
	db.Create(&models.Lead{FirstName: "B", LastName: "B", Email: "b@x.io", Status: models.StatusConverted, IsConverted: true, AssignedTo: &agent.ID})

	resp := doJSON(router, "GET", "/api/users/team-stats", nil, manager)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var stats []TeamMemberStats
	json.Unmarshal(resp.Body.Bytes(), &stats)
	if len(stats) != 2 {
		t.Fatalf("Expected 2 team members, got %d", len(stats))
	}
	for _, s := range stats {
		if s.ID == agent.ID && (s.Leads != 2 || s.Conversions != 1) {
			t.Errorf("Unexpected agent stats: %+v", s)
		}
	}
}

func TestEnsureAdmin(t *testing.T) {
	db := setupTestDB(t)

	created, err := EnsureAdmin(db, "Root@Example.com", "changeme")
	if err != nil || !created {
		t.Fatalf("Expected admin to be created, got %v %v", created, err)
	}

	created, err = EnsureAdmin(db, "other@example.com", "changeme")
	if err != nil || created {
		t.Errorf("Expected no second admin, got %v %v", created, err)
	}

	var admin models.User
	db.Where("role = ?", models.RoleAdmin).First(&admin)
	if admin.Email != "root@example.com" {
		t.Errorf("Expected root@example.com, got %s", admin.Email)
	}
	if !auth.CheckPassword("changeme", admin.PasswordHash) {
		t.Error("Expected password to be hashed with bcrypt")
	}
}
