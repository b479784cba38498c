package causality

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// HeaderAccessToken carries the viewer credential forwarded to the directory
const HeaderAccessToken = "X-Access-Token"

// TokenControllerRoutes lists the paths served by the controller
type TokenControllerRoutes struct {
	Token   string
	Health  string
	Metrics string
}

// TokenController serves causality tokens over HTTP
type TokenController struct {
	Resolver *Resolver
	Logger   Logger
	Routes   *TokenControllerRoutes
	Metrics  *Metrics
}

// TokenControllerOption customizes the controller
type TokenControllerOption func(*TokenController) *TokenController

// WithControllerLogger overrides the controller logger
func WithControllerLogger(logger Logger) TokenControllerOption {
	return func(c *TokenController) *TokenController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerTokenPath overrides the token route
func WithControllerTokenPath(path string) TokenControllerOption {
	return func(c *TokenController) *TokenController {
		if path != "" {
			c.Routes.Token = path
		}
		return c
	}
}

// WithControllerMetrics exposes metrics on the metrics route
func WithControllerMetrics(metrics *Metrics) TokenControllerOption {
	return func(c *TokenController) *TokenController {
		c.Metrics = metrics
		return c
	}
}

// NewTokenController creates a controller for the given resolver
func NewTokenController(resolver *Resolver, opts ...TokenControllerOption) *TokenController {
	c := &TokenController{
		Resolver: resolver,
		Logger:   defLogger{},
		Routes: &TokenControllerRoutes{
			Token:   "/causality_jwt",
			Health:  "/healthz",
			Metrics: "/metrics",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// RegisterRoutes mounts the controller on a router
func RegisterRoutes[T any](app router.Router[T], controller *TokenController) {
	app.Get(controller.Routes.Token, controller.TokenGet).SetName("causality-jwt.get")
	app.Post(controller.Routes.Token, controller.TokenPost).SetName("causality-jwt.post")
	app.Get(controller.Routes.Health, controller.Health).SetName("healthz.get")

	if controller.Metrics != nil {
		app.Get(controller.Routes.Metrics, controller.MetricsGet).SetName("metrics.get")
	}
}

// TokenPayload is the wire shape of a token request
type TokenPayload struct {
	Role   string `json:"role" query:"role" form:"role"`
	SaleID string `json:"sale_id" query:"sale_id" form:"sale_id"`
}

// TokenResponse is returned on success
type TokenResponse struct {
	Token string `json:"token"`
}

// ErrorItem describes a single failure
type ErrorItem struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse is returned for every failure
type ErrorResponse struct {
	Errors []ErrorItem `json:"errors"`
}

// TokenGet handles GET requests with role and sale_id query parameters
func (tc *TokenController) TokenGet(ctx router.Context) error {
	return tc.issue(ctx, TokenPayload{
		Role:   ctx.Query("role", ""),
		SaleID: ctx.Query("sale_id", ""),
	})
}

// TokenPost handles POST requests with a JSON or form body
func (tc *TokenController) TokenPost(ctx router.Context) error {
	payload := &TokenPayload{}
	if err := ctx.Bind(payload); err != nil {
		return tc.writeError(ctx, derive(ErrInvalidRequest, "", err, nil))
	}
	return tc.issue(ctx, *payload)
}

// Health reports liveness
func (tc *TokenController) Health(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]any{"status": "ok"})
}

// MetricsGet writes the issuance metrics in the Prometheus text format
func (tc *TokenController) MetricsGet(ctx router.Context) error {
	body, err := tc.Metrics.Expose()
	if err != nil {
		tc.Logger.Error("causality metrics exposition failed: %s", err)
		return ctx.Status(router.StatusInternalServerError).SendString("metrics unavailable")
	}
	ctx.SetHeader("Content-Type", MetricsContentType)
	return ctx.Send(body)
}

func (tc *TokenController) issue(ctx router.Context, payload TokenPayload) error {
	role, ok := ParseRole(payload.Role)
	if !ok {
		return tc.writeError(ctx, derive(ErrInvalidRequest, "role must be one of PARTICIPANT, OPERATOR, OBSERVER", nil, map[string]any{
			"role": payload.Role,
		}))
	}

	token, err := tc.Resolver.Token(ctx.Context(), TokenRequest{
		Role:          role,
		SaleReference: payload.SaleID,
		Credential:    CredentialFromRequest(ctx),
	})
	if err != nil {
		return tc.writeError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, TokenResponse{Token: token})
}

// CredentialFromRequest reads the viewer credential from X-Access-Token or
// a bearer Authorization header.
func CredentialFromRequest(ctx router.Context) string {
	if token := strings.TrimSpace(ctx.GetString(HeaderAccessToken, "")); token != "" {
		return token
	}

	header := strings.TrimSpace(ctx.GetString(router.HeaderAuthorization, ""))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}

	return ""
}

func (tc *TokenController) writeError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	tc.Logger.Info(
		"causality token request failed: %s category=%s text_code=%s details=%s",
		richErr.Message,
		richErr.Category,
		richErr.TextCode,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	message := richErr.Message
	if status >= router.StatusInternalServerError && !IsBackendUnavailable(richErr) {
		message = "An unexpected server error occurred"
	}

	return ctx.JSON(status, ErrorResponse{
		Errors: []ErrorItem{{Message: message, Code: richErr.TextCode}},
	})
}
