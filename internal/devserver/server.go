package devserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"SkillXChange/internal/model"
)

// Server is a development stand-in for the communication service: the REST
// surface the client repositories call plus the websocket endpoint the
// transport channel dials. Authentication is a dev shortcut: the bearer token
// is the user id.
type Server struct {
	store  *Store
	hub    *Hub
	logger *zap.Logger
	engine *gin.Engine
}

func NewServer(store *Store, logger *zap.Logger) *Server {
	s := &Server{
		store:  store,
		hub:    NewHub(store, logger),
		logger: logger,
	}
	s.engine = s.buildRouter()
	return s
}

// Handler exposes the router, usable directly under httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub exposes the websocket hub for shutdown.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:4200"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/socket", s.handleSocket)

	api := router.Group("/api", s.authenticate)
	{
		api.GET("/conversation", s.handleListConversations)
		api.POST("/conversation", s.handleCreateConversation)
		api.GET("/conversation/:id", s.handleGetConversation)
		api.GET("/conversation/:id/messages", s.handleListMessages)
		api.GET("/users/me", s.handleMe)
		api.GET("/users/profile/:id", s.handleProfile)
		api.GET("/notification", s.handleListNotifications)
		api.PATCH("/notification/:id/read", s.handleMarkNotificationRead)
	}

	return router
}

// authenticate resolves the dev bearer token (the user id) into a known user.
func (s *Server) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})
		return
	}

	user, err := s.store.User(model.ID(token))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unknown user"})
		return
	}
	c.Set("user", user)
	c.Next()
}

func currentUser(c *gin.Context) model.UserDetails {
	return c.MustGet("user").(model.UserDetails)
}

func (s *Server) handleSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	user, err := s.store.User(model.ID(token))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unknown user"})
		return
	}
	s.hub.ServeWS(c.Writer, c.Request, user.ID)
}

func (s *Server) handleListConversations(c *gin.Context) {
	page, limit, ok := pagination(c)
	if !ok {
		return
	}
	result, err := s.store.ListConversations(currentUser(c).ID, page, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) handleCreateConversation(c *gin.Context) {
	var body struct {
		UserB model.ID `json:"userB"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UserB.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "userB is required"})
		return
	}

	conversation, err := s.store.CreateConversation(currentUser(c).ID, body.UserB)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": conversation})
}

func (s *Server) handleGetConversation(c *gin.Context) {
	conversation, err := s.store.GetConversation(model.ID(c.Param("id")), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": conversation})
}

func (s *Server) handleListMessages(c *gin.Context) {
	page, limit, ok := pagination(c)
	if !ok {
		return
	}
	result, err := s.store.ListMessages(model.ID(c.Param("id")), page, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": currentUser(c)})
}

func (s *Server) handleProfile(c *gin.Context) {
	user, err := s.store.User(model.ID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (s *Server) handleListNotifications(c *gin.Context) {
	page, limit, ok := pagination(c)
	if !ok {
		return
	}
	result, err := s.store.ListNotifications(currentUser(c).ID, page, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	notification, err := s.store.MarkNotificationRead(currentUser(c).ID, model.ID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": notification})
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnknownConversation),
		errors.Is(err, ErrUnknownUser),
		errors.Is(err, ErrUnknownNotification):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	case errors.Is(err, ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"message": err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}

func pagination(c *gin.Context) (page, limit int, ok bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid page"})
		return 0, 0, false
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid limit"})
		return 0, 0, false
	}
	return page, limit, true
}
