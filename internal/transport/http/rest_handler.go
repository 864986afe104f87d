package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const identityKey = "identity"

type RESTHandler struct {
	service  *app.SessionService
	identify Identifier
	logger   *slog.Logger
}

func NewRESTHandler(service *app.SessionService, identify Identifier, logger *slog.Logger) *RESTHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RESTHandler{service: service, identify: identify, logger: logger}
}

type createSessionRequest struct {
	QuizID string `json:"quizId"`
}

// Authenticate resolves the caller and stores the identity on the gin context.
func (h *RESTHandler) Authenticate(c *gin.Context) {
	who, err := h.identify.Identify(c.Request)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.Set(identityKey, who)
	c.Next()
}

func (h *RESTHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, domain.Validationf("invalid request body: %v", err))
		return
	}
	sess, err := h.service.CreateSession(c.Request.Context(), req.QuizID, identity(c))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(201, domain.ViewOf(sess))
}

func (h *RESTHandler) GetSession(c *gin.Context) {
	sess, err := h.service.GetSessionByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(200, domain.ViewOf(sess))
}

func (h *RESTHandler) GetSessionByCode(c *gin.Context) {
	sess, err := h.service.GetSessionByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(200, domain.ViewOf(sess))
}

func (h *RESTHandler) ListSessions(c *gin.Context) {
	sessions, err := h.service.ListSessionsForQuiz(c.Request.Context(), c.Param("quizId"))
	if err != nil {
		h.abort(c, err)
		return
	}
	views := make([]domain.SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, domain.ViewOf(s))
	}
	c.JSON(200, gin.H{"sessions": views})
}

func (h *RESTHandler) Leaderboard(c *gin.Context) {
	lb, err := h.service.Leaderboard(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(200, lb)
}

func (h *RESTHandler) abort(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody(err)})
}

func identity(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if who, ok := v.(domain.Identity); ok {
			return who
		}
	}
	return domain.Identity{}
}
