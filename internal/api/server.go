package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/unifinance/funding-radar/internal/ai"
	"github.com/unifinance/funding-radar/internal/db"
	"github.com/unifinance/funding-radar/internal/identity"
	"github.com/unifinance/funding-radar/internal/ingest"
	"github.com/unifinance/funding-radar/internal/models"
)

type Server struct {
	Store     *db.Store
	Echo      *echo.Echo
	DB        *pgxpool.Pool
	AI        *ai.Client
	Embed     ai.Embedder
	Identity  *identity.Client
	Refresher *ingest.RefreshScheduler
}

func NewServer(pool *pgxpool.Pool, aiClient *ai.Client, idClient *identity.Client, refresher *ingest.RefreshScheduler) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to the local dev server
	allowedOrigins := []string{"http://localhost:5173"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s := &Server{
		Store:     db.NewStore(pool),
		Echo:      e,
		DB:        pool,
		AI:        aiClient,
		Embed:     aiClient,
		Identity:  idClient,
		Refresher: refresher,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.POST("/opportunities/refresh", s.handleRefreshOpportunities)

	api.POST("/assistant", s.handleAssistant)
	api.POST("/assistant/chat", s.handleAssistantChat)

	// Auth Routes (pass-through to the external identity service)
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)
	api.GET("/auth/oauth-url", s.handleOAuthURL)
	api.POST("/auth/resolve", s.handleResolveSession)

	// Protected Routes (Saved Opportunities)
	saved := api.Group("/saved")
	saved.Use(identity.Middleware)
	saved.POST("", s.handleSaveOpportunity)
	saved.DELETE("/:title", s.handleUnsaveOpportunity)
	saved.GET("", s.handleGetSavedOpportunities)
	saved.GET("/similar", s.handleSimilarSaved)

	// Protected Routes (Application Tracker)
	apps := api.Group("/applications")
	apps.Use(identity.Middleware)
	apps.POST("", s.handleCreateApplication)
	apps.GET("", s.handleListApplications)
	apps.PATCH("/:id", s.handleUpdateApplication)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type opportunitiesResponse struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
	LastUpdated   time.Time            `json:"last_updated"`
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	opps, updated := s.Refresher.Current()

	category := c.QueryParam("category")
	filtered := ingest.Filter(opps, category)

	// Filter returns a view; copy before sorting so the published list is
	// never reordered under a concurrent reader.
	out := make([]models.Opportunity, len(filtered))
	copy(out, filtered)

	switch c.QueryParam("sort") {
	case "deadline":
		ingest.SortByDeadline(out)
	default:
		ingest.SortByRelevance(out)
	}

	return c.JSON(http.StatusOK, opportunitiesResponse{
		Opportunities: out,
		Total:         len(out),
		LastUpdated:   updated,
	})
}

type refreshRequest struct {
	Profile     *models.UserProfile        `json:"profile,omitempty"`
	Preferences *models.FundingPreferences `json:"preferences,omitempty"`
}

func (s *Server) handleRefreshOpportunities(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil && err != echo.ErrUnsupportedMediaType {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	opps := s.Refresher.Refresh(c.Request().Context(), req.Profile, req.Preferences)
	out := make([]models.Opportunity, len(opps))
	copy(out, opps)
	ingest.SortByRelevance(out)

	return c.JSON(http.StatusOK, opportunitiesResponse{
		Opportunities: out,
		Total:         len(out),
		LastUpdated:   time.Now(),
	})
}

type assistantRequest struct {
	Message string `json:"message"`
}

type assistantResponse struct {
	Response string `json:"response"`
	Fallback bool   `json:"fallback"`
}

func (s *Server) handleAssistant(c echo.Context) error {
	var req assistantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	result, err := s.AI.Generate(c.Request().Context(), req.Message)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyPrompt) {
			return echo.NewHTTPError(http.StatusBadRequest, "Message is required")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Assistant unavailable")
	}
	return c.JSON(http.StatusOK, assistantResponse{Response: result.Text, Fallback: result.Fallback})
}

type assistantChatRequest struct {
	Messages []ai.Message `json:"messages"`
}

func (s *Server) handleAssistantChat(c echo.Context) error {
	var req assistantChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Message history is required")
	}

	result, err := s.AI.GenerateChat(c.Request().Context(), req.Messages)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Assistant unavailable")
	}
	return c.JSON(http.StatusOK, assistantResponse{Response: result.Text, Fallback: result.Fallback})
}

type signupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (s *Server) handleSignup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	}

	session, err := s.Identity.SignUp(c.Request().Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		log.Printf("signup failed for %s: %v", req.Email, err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Sign up failed")
	}
	return c.JSON(http.StatusCreated, session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	}

	session, err := s.Identity.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleOAuthURL(c echo.Context) error {
	provider := c.QueryParam("provider")
	if provider == "" {
		provider = "google"
	}
	return c.JSON(http.StatusOK, map[string]string{"url": s.Identity.OAuthURL(provider)})
}

type resolveRequest struct {
	RedirectURL  string `json:"redirect_url"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type resolveResponse struct {
	State       identity.FlowState   `json:"state"`
	Destination identity.Destination `json:"destination"`
	UserID      string               `json:"user_id,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// tokenSessionStore surfaces the token pair carried in the resolve request
// as the "current" session once validated, so the resolver's polling works
// against the external auth service.
type tokenSessionStore struct {
	client       *identity.Client
	accessToken  string
	refreshToken string
}

func (t *tokenSessionStore) CurrentSession(ctx context.Context) (*identity.Session, error) {
	if t.accessToken == "" {
		return nil, nil
	}
	return t.client.EstablishSession(ctx, t.accessToken, t.refreshToken)
}

func (t *tokenSessionStore) EstablishSession(ctx context.Context, access, refresh string) (*identity.Session, error) {
	return t.client.EstablishSession(ctx, access, refresh)
}

func (s *Server) handleResolveSession(c echo.Context) error {
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	sessions := &tokenSessionStore{
		client:       s.Identity,
		accessToken:  req.AccessToken,
		refreshToken: req.RefreshToken,
	}
	resolver := identity.NewResolver(sessions, s.Identity)
	outcome := resolver.Resolve(c.Request().Context(), req.RedirectURL)

	resp := resolveResponse{
		State:       outcome.State,
		Destination: outcome.Destination,
		UserID:      outcome.UserID,
	}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSaveOpportunity(c echo.Context) error {
	userID, err := identity.GetUserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	var opp models.Opportunity
	if err := c.Bind(&opp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if opp.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Title is required")
	}
	if opp.ID == uuid.Nil {
		opp.ID = uuid.New()
	}

	// The embedding enables similarity search over saved records; losing it
	// is not worth failing the save.
	var embedding []float32
	if vec, err := s.Embed.EmbedText(c.Request().Context(), opp.Title+" "+opp.Eligibility); err != nil {
		log.Printf("embedding for %q failed: %v", opp.Title, err)
	} else {
		embedding = vec
	}

	if err := s.Store.SaveOpportunity(c.Request().Context(), userID, opp, embedding); err != nil {
		log.Printf("saving opportunity failed: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save opportunity")
	}
	return c.JSON(http.StatusCreated, opp)
}

func (s *Server) handleUnsaveOpportunity(c echo.Context) error {
	userID, err := identity.GetUserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	title, err := url.PathUnescape(c.Param("title"))
	if err != nil || title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid title")
	}

	if err := s.Store.UnsaveOpportunity(c.Request().Context(), userID, title); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Saved opportunity not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to remove saved opportunity")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetSavedOpportunities(c echo.Context) error {
	userID, err := identity.GetUserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	saved, err := s.Store.ListSaved(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list saved opportunities")
	}
	return c.JSON(http.StatusOK, map[string]any{"saved": saved, "total": len(saved)})
}

func (s *Server) handleSimilarSaved(c echo.Context) error {
	userID, err := identity.GetUserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Query parameter q is required")
	}

	embedding, err := s.Embed.EmbedText(c.Request().Context(), query)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Similarity search unavailable")
	}

	saved, err := s.Store.SimilarSaved(c.Request().Context(), userID, embedding, 5)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Similarity search failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"saved": saved, "total": len(saved)})
}

func (s *Server) handleCreateApplication(c echo.Context) error {
	userID, err := identity.GetUserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	var app models.Application
	if err := c.Bind(&app); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if app.OpportunityTitle == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Opportunity title is required")
	}
	app.UserID = userID

	if err := s.Store.CreateApplication(c.Request().Context(), &app); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, app)
}

func (s *Server) handleListApplications(c echo.Context) error {
	userID, err := identity.GetUserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	apps, err := s.Store.ListApplications(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list applications")
	}
	return c.JSON(http.StatusOK, map[string]any{"applications": apps, "total": len(apps)})
}

type updateApplicationRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

func (s *Server) handleUpdateApplication(c echo.Context) error {
	userID, err := identity.GetUserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid application id")
	}

	var req updateApplicationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	if err := s.Store.UpdateApplicationStatus(c.Request().Context(), userID, id, req.Status, req.Notes); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Application not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Echo.Shutdown(shutdownCtx)
	}
}
