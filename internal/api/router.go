package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/content"
	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/moderation"
	"github.com/agora-community/agora/internal/notify"
	"github.com/agora-community/agora/internal/ratelimit"
	"github.com/agora-community/agora/internal/report"
	"github.com/agora-community/agora/pkg/config"
	"github.com/agora-community/agora/pkg/logging"
)

// ContentService creates, edits and reads posts and comments
type ContentService interface {
	CreatePost(ctx context.Context, userID string, in content.PostInput) (*content.PostView, error)
	UpdatePost(ctx context.Context, userID, postID string, in content.PostInput) (*content.PostView, error)
	DeletePost(ctx context.Context, userID, postID string) error
	GetPost(ctx context.Context, viewerID, postID string) (*content.PostDetail, error)
	ListPosts(ctx context.Context, viewerID string, q content.ListQuery) (*content.PostPage, error)
	ToggleLike(ctx context.Context, userID, postID string) (*content.LikeResult, error)
	CreateComment(ctx context.Context, userID, postID, body string) (*content.CommentView, error)
	ListComments(ctx context.Context, viewerID, postID string) ([]content.CommentView, error)
	ListMyPosts(ctx context.Context, userID string) ([]content.PostView, error)
	ToggleFollow(ctx context.Context, userID string, req content.FollowRequest) (*content.FollowResult, error)
	ListFollowing(ctx context.Context, userID string) ([]content.FollowedAuthor, error)
}

// ModerationService handles review requests and moderator decisions
type ModerationService interface {
	RequestReview(ctx context.Context, req moderation.ReviewRequest) (*moderation.Target, error)
	Queue(ctx context.Context, q moderation.QueueQuery) ([]*moderation.QueueItem, error)
	Decide(ctx context.Context, req moderation.DecisionRequest) (*moderation.Target, error)
}

// ReportService accepts user reports
type ReportService interface {
	Submit(ctx context.Context, sub report.Submission) (*report.Result, error)
}

// InboxService reads and updates a user's notifications
type InboxService interface {
	List(ctx context.Context, userID string, page, perPage int) (*notify.Page, error)
	SetStatus(ctx context.Context, userID, messageID string, status models.NotificationStatus) error
}

// UserDirectory looks up users for role checks
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// HealthChecker is a dependency reported by /health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Services are the domain services exposed over JSON-RPC
type Services struct {
	Content    ContentService
	Moderation ModerationService
	Reports    ReportService
	Inbox      InboxService
	Users      UserDirectory
}

// Router sets up API routes
type Router struct {
	handler  *JSONRPCHandler
	auth     *Authenticator
	services Services
	checks   map[string]HealthChecker
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(services Services, auth *Authenticator, limiter *ratelimit.WindowLimiter, limits config.RateLimitConfig, checks map[string]HealthChecker) *Router {
	router := &Router{
		handler:  NewJSONRPCHandler(limiter, limits),
		auth:     auth,
		services: services,
		checks:   checks,
		logger:   logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.POST("/", r.handler.Limit(), r.auth.Middleware(), r.handler.Handle)
}

func (r *Router) registerMethods() {
	posts := &postAPI{content: r.services.Content}
	r.handler.RegisterMethod("posts.list", ClassRead, posts.list)
	r.handler.RegisterMethod("posts.get", ClassRead, posts.get)
	r.handler.RegisterUserMethod("posts.mine", ClassRead, posts.mine)
	r.handler.RegisterUserMethod("posts.create", ClassWrite, posts.create)
	r.handler.RegisterUserMethod("posts.update", ClassWrite, posts.update)
	r.handler.RegisterUserMethod("posts.delete", ClassWrite, posts.remove)
	r.handler.RegisterUserMethod("posts.like", ClassWrite, posts.like)
	r.handler.RegisterMethod("comments.list", ClassRead, posts.listComments)
	r.handler.RegisterUserMethod("comments.create", ClassWrite, posts.createComment)
	r.handler.RegisterUserMethod("follows.toggle", ClassWrite, posts.toggleFollow)
	r.handler.RegisterUserMethod("follows.list", ClassRead, posts.listFollowing)

	reports := &reportAPI{reports: r.services.Reports}
	r.handler.RegisterUserMethod("reports.submit", ClassWrite, reports.submit)

	mod := &moderationAPI{moderation: r.services.Moderation, users: r.services.Users}
	r.handler.RegisterUserMethod("moderation.request_review", ClassWrite, mod.requestReview)
	r.handler.RegisterUserMethod("moderation.queue", ClassRead, mod.queue)
	r.handler.RegisterUserMethod("moderation.decide", ClassWrite, mod.decide)

	inbox := &messageAPI{inbox: r.services.Inbox}
	r.handler.RegisterUserMethod("messages.list", ClassRead, inbox.list)
	r.handler.RegisterUserMethod("messages.mark_read", ClassWrite, inbox.markRead)
}

// healthHandler reports the status of every registered dependency
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, check := range r.checks {
		if err := check.Health(ctx); err != nil {
			r.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := gin.H{
		"status":       "OK",
		"service":      "agora-api",
		"dependencies": deps,
	}
	if status != http.StatusOK {
		body["status"] = "DEGRADED"
	}
	c.JSON(status, body)
}
