package intake

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/mikepea/leaddesk/pkg/leaddesk/apikeys"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// HeaderAPIKey carries the third-party credential.
const HeaderAPIKey = "X-API-Key"

// Authenticator resolves a presented API key to a live registry record.
type Authenticator struct {
	db *gorm.DB
}

// NewAuthenticator creates an authenticator backed by the API key registry.
func NewAuthenticator(db *gorm.DB) *Authenticator {
	return &Authenticator{db: db}
}

// Authenticate checks the key and, when the key carries an allow-list, the
// caller IP. Unknown and inactive keys are indistinguishable to the caller.
// It has no side effects.
func (a *Authenticator) Authenticate(ctx context.Context, key, clientIP string) (*models.APIKey, error) {
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	record, err := apikeys.Lookup(a.db.WithContext(ctx), key)
	if errors.Is(err, apikeys.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !record.IsActive {
		return nil, ErrUnauthorized
	}

	if len(record.AllowedIPs) > 0 && !ipAllowed(record.AllowedIPs, clientIP) {
		return nil, ErrIPNotAllowed
	}
	return record, nil
}

func ipAllowed(allowed []string, ip string) bool {
	if ip == "" {
		return false
	}
	for _, a := range allowed {
		if strings.TrimSpace(a) == ip {
			return true
		}
	}
	return false
}

// ClientIP returns the caller address: X-Real-IP, then the first entry of
// X-Forwarded-For, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
