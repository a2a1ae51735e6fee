package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"image-enhancer/internal/domain"
	"image-enhancer/internal/enhancer"
	"image-enhancer/internal/service"
	"image-enhancer/internal/storage"
)

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	TokenValidator
	Issue(subject string) (string, time.Time, error)
}

// Config wires the handler's collaborators.
type Config struct {
	Users          service.UserService
	Enhance        service.EnhanceService
	Tokens         TokenIssuer
	Uploads        storage.Service
	Outputs        storage.Service
	TemplatesDir   string
	StaticDir      string
	MaxUploadBytes int64
	Logger         logrus.FieldLogger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	cfg   Config
	authz *Authorizer
	log   logrus.FieldLogger
}

func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		cfg:   cfg,
		authz: NewAuthorizer(cfg.Tokens, cfg.Users, cfg.Logger),
		log:   cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.MaxMultipartMemory = h.cfg.MaxUploadBytes
	router.Use(corsMiddleware(), requestLogger(h.log))

	requireAuth := RequireAuth(h.authz)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.GET("/me", requireAuth, h.me)
	}

	router.POST("/enhance", requireAuth, h.enhance)
	router.GET("/history", requireAuth, h.history)

	router.GET("/uploads/:filename", h.artifact(h.cfg.Uploads))
	router.GET("/outputs/:filename", h.artifact(h.cfg.Outputs))

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	if h.cfg.StaticDir != "" {
		router.Static("/static", h.cfg.StaticDir)
	}
	if h.cfg.TemplatesDir != "" {
		router.GET("/", h.page("landing.html"))
		router.GET("/login", h.page("login.html"))
		router.GET("/register", h.page("register.html"))
		router.GET("/dashboard", h.page("dashboard.html"))
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	_, err := h.cfg.Users.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			fail(c, http.StatusConflict, "Email already exists")
		case errors.As(err, &vErr):
			fail(c, http.StatusBadRequest, vErr.Error())
		default:
			h.log.WithError(err).Error("registration failed")
			fail(c, http.StatusInternalServerError, "Database service unavailable")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Account created successfully"})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.cfg.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.log.WithError(err).Error("login failed")
		fail(c, http.StatusInternalServerError, "Database service unavailable")
		return
	}

	token, expiresAt, err := h.cfg.Tokens.Issue(user.Email)
	if err != nil {
		h.log.WithError(err).Error("issue token")
		fail(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Login successful",
		"access_token": token,
		"token_type":   "bearer",
		"expires_at":   expiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, userToResponse(CurrentUser(c)))
}

func (h *Handler) enhance(c *gin.Context) {
	// room for the multipart envelope on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusBadRequest, "file is too large")
			return
		}
		fail(c, http.StatusBadRequest, "file is required")
		return
	}
	filterType, ok := c.GetPostForm("filter_type")
	if !ok {
		fail(c, http.StatusBadRequest, "filter_type is required")
		return
	}
	params, err := parseParams(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if fileHeader.Size > h.cfg.MaxUploadBytes {
		fail(c, http.StatusBadRequest, "file is too large")
		return
	}

	// reject before reading the body
	if !service.AllowedExtension(fileHeader.Filename) {
		fail(c, http.StatusBadRequest, "Invalid file type. Only JPG, JPEG, PNG are supported.")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "unreadable upload")
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		fail(c, http.StatusBadRequest, "unreadable upload")
		return
	}

	art, err := h.cfg.Enhance.Submit(c.Request.Context(), CurrentUser(c), service.Submission{
		Filename:   fileHeader.Filename,
		Data:       data,
		FilterType: filterType,
		Params:     params,
	})
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			fail(c, http.StatusBadRequest, vErr.Error())
			return
		}
		h.log.WithError(err).Error("enhance failed")
		fail(c, http.StatusInternalServerError, "Image processing failed")
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Name}))
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

func parseParams(c *gin.Context) (enhancer.Params, error) {
	var p enhancer.Params
	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"width", &p.Width},
		{"height", &p.Height},
	} {
		raw := strings.TrimSpace(c.PostForm(field.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return p, fmt.Errorf("%s must be a positive integer", field.name)
		}
		*field.dst = v
	}
	return p, nil
}

func (h *Handler) history(c *gin.Context) {
	user := CurrentUser(c)
	records, err := h.cfg.Enhance.History(c.Request.Context(), user.ID)
	if err != nil {
		h.log.WithError(err).Error("list history")
		fail(c, http.StatusInternalServerError, "Database service unavailable")
		return
	}

	resp := make([]HistoryResponse, len(records))
	for i := range records {
		resp[i] = historyToResponse(records[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) artifact(store storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("filename")
		data, err := store.Get(c.Request.Context(), name)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				fail(c, http.StatusNotFound, "not found")
				return
			}
			h.log.WithError(err).WithField("artifact", name).Error("read artifact")
			fail(c, http.StatusInternalServerError, "storage unavailable")
			return
		}

		contentType := "application/octet-stream"
		if format, ok := enhancer.FormatFromExtension(filepath.Ext(name)); ok {
			contentType = format.ContentType()
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

func (h *Handler) page(name string) gin.HandlerFunc {
	path := filepath.Join(h.cfg.TemplatesDir, name)
	return func(c *gin.Context) {
		c.File(path)
	}
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type HistoryResponse struct {
	ID               int64  `json:"id"`
	OriginalFilename string `json:"original_filename"`
	EnhancedFilename string `json:"enhanced_filename"`
	FilterType       string `json:"filter_type"`
	Timestamp        string `json:"timestamp"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

func historyToResponse(rec domain.HistoryRecord) HistoryResponse {
	return HistoryResponse{
		ID:               rec.ID,
		OriginalFilename: rec.OriginalFilename,
		EnhancedFilename: rec.EnhancedFilename,
		FilterType:       rec.FilterType,
		Timestamp:        rec.Timestamp.Format(time.RFC3339Nano),
	}
}
