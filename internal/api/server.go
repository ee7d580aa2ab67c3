// Package api exposes quotes, assessments, run history and a manual run
// trigger over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/david/issue-hunter/internal/agent"
	"github.com/david/issue-hunter/internal/auth"
	"github.com/david/issue-hunter/internal/db"
	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/models"
	"github.com/david/issue-hunter/internal/pacing"
	"github.com/david/issue-hunter/internal/pricing"
	"github.com/david/issue-hunter/internal/respond"
	"github.com/david/issue-hunter/internal/scoring"
)

// Runner starts one hunt.
type Runner interface {
	Run(ctx context.Context) (models.RunReport, error)
}

// RunHistory reads persisted runs.
type RunHistory interface {
	ListRuns(ctx context.Context, params db.ListRunsParams) (*db.RunList, error)
	GetRun(ctx context.Context, id uuid.UUID) (*models.RunReport, error)
	GetStats(ctx context.Context) (map[string]any, error)
}

// Options wires a Server. History and Tracker are optional.
type Options struct {
	Runner      Runner
	History     RunHistory
	Assessor    *scoring.Assessor
	Quoter      pricing.Quoter
	Gate        *pacing.Gate
	Tracker     *agent.Tracker
	Auth        *auth.Authenticator
	CORSOrigins []string
	Log         logger.Logger
}

type Server struct {
	Echo *echo.Echo

	opts Options
	log  logger.Logger

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    *models.RunReport  `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
	done      chan struct{}
}

func NewServer(opts Options) (*Server, error) {
	if opts.Runner == nil || opts.Assessor == nil || opts.Auth == nil {
		return nil, errors.New("api: runner, assessor and authenticator are required")
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(opts.Log))

	allowedOrigins := []string{"http://localhost:4200"}
	for _, o := range opts.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			allowedOrigins = append(allowedOrigins, o)
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{Echo: e, opts: opts, log: opts.Log}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.Echo.Group("/api/v1")
	api.POST("/quote", s.handleQuote)
	api.POST("/assess", s.handleAssess)
	api.POST("/trial", s.handleTrialOffer)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/stats", s.handleGetStats)

	admin := api.Group("/admin")
	admin.Use(s.opts.Auth.Admin)
	admin.POST("/run", s.handleTriggerRun)
	admin.GET("/job/:id", s.handleJobStatus)
	admin.POST("/token", s.handleIssueToken)
}

func requestLogger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			log.Debug("HTTP request",
				logger.String("method", c.Request().Method),
				logger.String("path", c.Path()),
				logger.Int("status", c.Response().Status),
				logger.Duration("latency", time.Since(start)),
			)
			return nil
		}
	}
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

// Shutdown stops the listener and cancels a background run, if any.
func (s *Server) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Cancel != nil {
		s.runningJob.Cancel()
	}
	s.jobMu.Unlock()
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type quoteRequest struct {
	Category        string `json:"category"`
	Urgent          bool   `json:"urgent"`
	ComplexityScore int    `json:"complexity_score"`
	NicheTechStack  bool   `json:"niche_tech_stack"`
	LargeProject    bool   `json:"large_project"`
	FastDelivery    bool   `json:"fast_delivery"`
}

func (s *Server) handleQuote(c echo.Context) error {
	var req quoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.ComplexityScore < 0 || req.ComplexityScore > 10 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "complexity_score must be between 0 and 10"})
	}

	quote := s.opts.Quoter.Quote(pricing.Input{
		Category:        strings.TrimSpace(req.Category),
		Urgent:          req.Urgent,
		ComplexityScore: req.ComplexityScore,
		NicheTechStack:  req.NicheTechStack,
		LargeProject:    req.LargeProject,
		FastDelivery:    req.FastDelivery,
	})
	return c.JSON(http.StatusOK, quote)
}

type assessRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Author string   `json:"author"`
	Labels []string `json:"labels"`
}

type assessResponse struct {
	Assessment models.RiskAssessment `json:"assessment"`
	Quote      *models.PriceQuote    `json:"quote,omitempty"`
}

func (s *Server) handleAssess(c echo.Context) error {
	var req assessRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}

	opp := models.FilteredOpportunity{RawOpportunity: models.RawOpportunity{
		Title:  req.Title,
		Body:   req.Body,
		Author: req.Author,
		Labels: req.Labels,
	}}
	assessment, err := s.opts.Assessor.Assess(c.Request().Context(), opp)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	resp := assessResponse{Assessment: assessment}
	if !assessment.Declined() {
		quote := s.opts.Quoter.Quote(pricing.InputFromAnalysis(assessment.Project))
		resp.Quote = &quote
	}
	return c.JSON(http.StatusOK, resp)
}

type trialRequest struct {
	assessRequest
	Timeline string `json:"timeline"`
}

// handleTrialOffer drafts a free quick fix plus a priced complete-solution
// offer for one issue.
func (s *Server) handleTrialOffer(c echo.Context) error {
	var req trialRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}

	opp := models.FilteredOpportunity{RawOpportunity: models.RawOpportunity{
		Title:  req.Title,
		Body:   req.Body,
		Author: req.Author,
		Labels: req.Labels,
	}}
	analysis := s.opts.Assessor.Analyzer.Analyze(opp)
	quote := s.opts.Quoter.Quote(pricing.InputFromAnalysis(analysis))

	return c.JSON(http.StatusOK, map[string]any{
		"offer": respond.TrialOffer(opp, respond.DefaultQuickFix(), quote, req.Timeline),
		"quote": quote,
	})
}

func (s *Server) handleListRuns(c echo.Context) error {
	if s.opts.History == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "run history is not configured"})
	}

	params := db.ListRunsParams{Status: c.QueryParam("status")}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		params.Offset = o
	}
	if raw := c.QueryParam("dry_run"); raw != "" {
		v := strings.EqualFold(raw, "true")
		params.DryRun = &v
	}
	if raw := c.QueryParam("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
		}
		params.Since = since
	}

	result, err := s.opts.History.ListRuns(c.Request().Context(), params)
	if err != nil {
		s.log.Error("Failed to list runs", logger.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetRun(c echo.Context) error {
	if s.opts.History == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "run history is not configured"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid run ID"})
	}

	report, err := s.opts.History.GetRun(c.Request().Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleGetStats(c echo.Context) error {
	resp := map[string]any{}
	if s.opts.Gate != nil {
		if err := s.opts.Gate.Refresh(c.Request().Context()); err != nil {
			s.opts.Log.Warn("Failed to refresh rate state", logger.Error(err))
		}
		state := s.opts.Gate.Snapshot()
		resp["pacing"] = map[string]any{
			"daily_limit":    state.DailyLimit,
			"sent_today":     state.SentToday,
			"remaining":      s.opts.Gate.Remaining(),
			"last_action_at": state.LastActionAt,
		}
	}
	if s.opts.Tracker != nil {
		resp["performance"] = s.opts.Tracker.Snapshot()
		resp["insights"] = s.opts.Tracker.Insights()
	}
	if s.opts.History != nil {
		stats, err := s.opts.History.GetStats(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		resp["history"] = stats
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTriggerRun(c echo.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		jobID := s.runningJob.ID
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]string{
			"error":  "a run is already in progress",
			"job_id": jobID,
		})
	}

	jobID := uuid.NewString()
	jobCtx, jobCancel := context.WithCancel(context.Background())
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
		done:      make(chan struct{}),
	}
	s.runningJob = job
	s.jobMu.Unlock()

	log := s.log.With(logger.String("job_id", jobID))
	go func() {
		defer close(job.done)
		defer jobCancel()

		report, err := s.opts.Runner.Run(jobCtx)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if !errors.Is(err, agent.ErrRunInProgress) {
			job.Result = &report
		}
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			log.Error("Triggered run failed", logger.Error(err))
			return
		}
		job.Status = "completed"
		log.Info("Triggered run completed", logger.String("run_id", report.RunID.String()))
	}()

	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "Run started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]any{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}

type tokenRequest struct {
	Subject    string `json:"subject"`
	TTLMinutes int    `json:"ttl_minutes"`
}

func (s *Server) handleIssueToken(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(req.Subject) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "subject is required"})
	}

	token, err := s.opts.Auth.IssueToken(req.Subject, time.Duration(req.TTLMinutes)*time.Minute)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, map[string]string{"token": token})
}
