package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-05T14:30:00Z", time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), true},
		{"2024-03-05T14:30:00.250Z", time.Date(2024, 3, 5, 14, 30, 0, 250000000, time.UTC), true},
		{"2024-03-05T16:30:00+02:00", time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), true},
		{"2024-03-05T14:30:00", time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), true},
		{"2024-03-05 14:30:00", time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), true},
		{"2024-03", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
		{"2024-13-01", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestHumanDate(t *testing.T) {
	assert.Equal(t, "01 September 2025", HumanDate(time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "01 January 2024", HumanDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	// Rendered in UTC regardless of the input zone
	tokyo := time.FixedZone("JST", 9*60*60)
	assert.Equal(t, "31 December 2023", HumanDate(time.Date(2024, 1, 1, 8, 0, 0, 0, tokyo)))

	assert.Nil(t, humanDatePtr(nil))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"real ip wins", map[string]string{"X-Real-IP": "1.1.1.1", "X-Forwarded-For": "2.2.2.2"}, "3.3.3.3:80", "1.1.1.1"},
		{"first forwarded", map[string]string{"X-Forwarded-For": " 2.2.2.2 , 10.0.0.1"}, "3.3.3.3:80", "2.2.2.2"},
		{"remote addr", nil, "3.3.3.3:80", "3.3.3.3"},
		{"remote addr without port", nil, "3.3.3.3", "3.3.3.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("POST", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestSubmissionValidate(t *testing.T) {
	valid := Submission{FirstName: "A", LastName: "B", Email: "a@b.co"}
	assert.NoError(t, valid.Validate())

	missing := Submission{FirstName: "A", Email: "bad"}
	err := missing.Validate()
	assert.ErrorIs(t, err, &Error{Code: CodeValidation})
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "Missing required fields", e.Message)

	bad := Submission{FirstName: "A", LastName: "B", Email: "a@b"}
	require.True(t, errors.As(bad.Validate(), &e))
	assert.Equal(t, FieldDetails{Field: "email", Value: "a@b"}, e.Details)
}

func TestSourceIDUnmarshal(t *testing.T) {
	tests := map[string]SourceID{
		`{"source_id":"abc"}`: "abc",
		`{"source_id":42}`:    "42",
		`{"source_id":4.5}`:   "4.5",
		`{"source_id":null}`:  "",
		`{}`:                  "",
	}
	for body, want := range tests {
		var sub Submission
		require.NoError(t, json.Unmarshal([]byte(body), &sub), body)
		assert.Equal(t, want, sub.SourceID, body)
	}

	var sub Submission
	assert.Error(t, json.Unmarshal([]byte(`{"source_id":true}`), &sub))
}

func TestErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("stage: %w", ErrDuplicatePhone)
	assert.ErrorIs(t, wrapped, ErrDuplicatePhone)
	assert.NotErrorIs(t, wrapped, ErrDuplicateEmail)

	cause := errors.New("disk full")
	e := serverError(CodeInternalError, cause)
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, "disk full", e.Message)
	assert.Equal(t, http.StatusInternalServerError, e.Status)

	assert.Equal(t, "Internal server error", serverError(CodeQueryError, nil).Message)
	assert.Same(t, ErrUnauthorized, asError(ErrUnauthorized, CodeInternalError))
	assert.Equal(t, CodeQueryError, asError(cause, CodeQueryError).Code)
}

func TestAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	auth := NewAuthenticator(db)
	ctx := context.Background()
	createTestKey(t, db, "GOODKEY", "AFF1")
	createTestKey(t, db, "DEADKEY", "AFF2", inactive())
	createTestKey(t, db, "IPKEY1", "AFF3", allowIPs("1.2.3.4", " 5.6.7.8 "))

	key, err := auth.Authenticate(ctx, "GOODKEY", "")
	require.NoError(t, err)
	assert.Equal(t, "AFF1", key.SourcePrefix)

	_, err = auth.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = auth.Authenticate(ctx, "UNKNOWN", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = auth.Authenticate(ctx, "DEADKEY", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = auth.Authenticate(ctx, "IPKEY1", "")
	assert.ErrorIs(t, err, ErrIPNotAllowed)
	_, err = auth.Authenticate(ctx, "IPKEY1", "9.9.9.9")
	assert.ErrorIs(t, err, ErrIPNotAllowed)
	_, err = auth.Authenticate(ctx, "IPKEY1", "5.6.7.8")
	assert.NoError(t, err)
}

func TestResolverFallsBackToUnknownAgent(t *testing.T) {
	db := setupTestDB(t)
	agent := createTestAgent(t, db, "ghost@example.com", "")
	createRule(t, db, "AFF1", "DE", agent.ID, 1)

	a, err := NewResolver(db).Resolve(context.Background(), "AFF1", " germany ")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, agent.ID, a.AgentID)
	assert.Equal(t, "Unknown Agent", a.AgentName)
	assert.Equal(t, "DE", a.CountryCode)

	a, err = NewResolver(db).Resolve(context.Background(), "AFF1", "   ")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestResolverSkipsInactiveRules(t *testing.T) {
	db := setupTestDB(t)
	x := createTestAgent(t, db, "x@example.com", "Agent X")
	y := createTestAgent(t, db, "y@example.com", "Agent Y")
	createRule(t, db, "AFF1", "FR", x.ID, 10)
	createRule(t, db, "AFF1", "FR", y.ID, 1)
	db.Model(&models.AssignmentRule{}).Where("assigned_agent_id = ?", x.ID).Update("is_active", false)

	a, err := NewResolver(db).Resolve(context.Background(), "AFF1", "FR")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, y.ID, a.AgentID)
}

func TestPersistTouchesOnlyUsedKey(t *testing.T) {
	db := setupTestDB(t)
	used := createTestKey(t, db, "USEDKEY", "AFF1")
	idle := createTestKey(t, db, "IDLEKEY", "AFF2")

	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	clock := first
	p := NewPersister(db, func() time.Time { return clock })

	_, err := p.Persist(context.Background(), &used, &Submission{FirstName: "A", LastName: "B", Email: "a@example.com"}, nil)
	require.NoError(t, err)

	var stored models.APIKey
	db.First(&stored, used.ID)
	require.NotNil(t, stored.LastUsedAt)
	assert.True(t, first.Equal(*stored.LastUsedAt))

	clock = second
	_, err = p.Persist(context.Background(), &used, &Submission{FirstName: "C", LastName: "D", Email: "c@example.com"}, nil)
	require.NoError(t, err)

	db.First(&stored, used.ID)
	require.NotNil(t, stored.LastUsedAt)
	assert.True(t, second.Equal(*stored.LastUsedAt))

	var untouched models.APIKey
	db.First(&untouched, idle.ID)
	assert.Nil(t, untouched.LastUsedAt)
}

func TestPersistBackdatedConversion(t *testing.T) {
	db := setupTestDB(t)
	key := createTestKey(t, db, "USEDKEY", "AFF1")

	sub := &Submission{FirstName: "A", LastName: "B", Email: "a@example.com", ConvertedAt: "2024-02-29T10:15:30Z"}
	lead, err := NewPersister(db, nil).Persist(context.Background(), &key, sub, nil)
	require.NoError(t, err)

	assert.True(t, lead.IsConverted)
	require.NotNil(t, lead.ConvertedAt)
	assert.Equal(t, "29 February 2024", HumanDate(*lead.ConvertedAt))

	acts := activities(db, lead.ID)
	require.Len(t, acts, 1)
	assert.Equal(t, "Lead created with FTD at 2024-02-29T10:15:30.000Z via API (AFF1)", acts[0].Description)
}
