package intake

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/logging"
)

// CORS headers sent with every intake response
const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-api-key, content-type"
	corsAllowMethods = "GET, POST, OPTIONS"
)

// Handler serves the public intake endpoint
type Handler struct {
	svc *Service
}

// NewHandler creates a new intake handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CORS sets the intake CORS headers and answers preflight requests.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// Serve authenticates the caller and dispatches on the method.
// Authentication comes first, so unsupported methods without a key get 401.
func (h *Handler) Serve(c *gin.Context) {
	ctx := c.Request.Context()

	errCode := CodeInternalError
	if c.Request.Method == http.MethodGet {
		errCode = CodeQueryError
	}

	key, err := h.svc.Authenticate(ctx, c.GetHeader(HeaderAPIKey), ClientIP(c.Request))
	if err != nil {
		h.fail(c, asError(err, errCode))
		return
	}
	c.Set("api_key_id", key.ID)

	switch c.Request.Method {
	case http.MethodGet:
		leads, err := h.svc.List(ctx, key, ListQuery{
			Email:  c.Query("email"),
			Sort:   c.Query("sort"),
			From:   c.Query("from"),
			To:     c.Query("to"),
			Limit:  c.Query("limit"),
			Offset: c.Query("offset"),
		})
		if err != nil {
			h.fail(c, asError(err, CodeQueryError))
			return
		}
		data := make([]LeadSummary, len(leads))
		for i, lead := range leads {
			data[i] = newLeadSummary(lead)
		}
		c.JSON(http.StatusOK, success(data))

	case http.MethodPost:
		var sub Submission
		if err := json.NewDecoder(c.Request.Body).Decode(&sub); err != nil {
			h.fail(c, validationError("Invalid JSON body", nil))
			return
		}
		lead, err := h.svc.Submit(ctx, key, &sub)
		if err != nil {
			h.fail(c, asError(err, CodeInternalError))
			return
		}
		c.JSON(http.StatusOK, success(newCreatedLead(lead)))

	default:
		h.fail(c, ErrMethodNotAllowed)
	}
}

func (h *Handler) fail(c *gin.Context, e *Error) {
	if e.Status >= http.StatusInternalServerError {
		logging.LogError("intake_"+e.Code, e, map[string]interface{}{
			"method":     c.Request.Method,
			"request_id": logging.GetRequestID(c),
		})
	}
	c.JSON(e.Status, failure(e))
}

// RegisterRoutes mounts the endpoint at /leads for every method.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Use(CORS())
	rg.Any("/leads", h.Serve)
}

// PanicResponse writes the internal_error envelope; used with logging.Recovery.
func PanicResponse(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, failure(serverError(CodeInternalError, nil)))
}
