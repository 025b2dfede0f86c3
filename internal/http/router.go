package http

import (
	"log/slog"

	"github.com/geocoder89/travelhub/internal/auth"
	"github.com/geocoder89/travelhub/internal/config"
	"github.com/geocoder89/travelhub/internal/http/handlers"
	"github.com/geocoder89/travelhub/internal/http/middlewares"
	"github.com/geocoder89/travelhub/internal/observability"
	"github.com/geocoder89/travelhub/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Tokens interface {
	handlers.TokenIssuer
	middlewares.TokenVerifier
}

// Deps is everything the router needs. Repairs, Prom and Gatherer are
// optional.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Store    *store.Store
	Tokens   Tokens
	Repairs  handlers.RepairQueue
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   map[string]handlers.PingFunc
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()

	// order matters: request id and logging wrap everything, errors render last
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("travelhub"))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.CORSMiddleware(d.Config.AllowedOrigins))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))
	r.Use(middlewares.ErrorHandler(d.Log))
	r.Use(middlewares.RequireJSON())

	checks := d.Checks
	if checks == nil {
		checks = map[string]handlers.PingFunc{"store": d.Store.Ping}
	}

	health := handlers.NewHealthHandler(checks)
	r.GET("/", handlers.Banner)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Tokens)
	requireSelf := middlewares.RequireSelf(d.Store.Users)
	requireOwner := middlewares.RequirePlaceOwner(d.Store.Places)

	usersHandler := handlers.NewUsersHandler(d.Store.Users, d.Store.Places, d.Tokens, d.Log)
	placesHandler := handlers.NewPlacesHandler(d.Store.Places, d.Store.Users, d.Repairs, d.Prom, d.Log)

	users := r.Group("/users")
	{
		users.POST("/register", usersHandler.Register)
		users.POST("/login", usersHandler.Login)
		users.GET("/:id", usersHandler.Get)
		users.PATCH("/places/:id", authMW.RequireAuth(), requireSelf, usersHandler.AddFavorite)
		users.PATCH("/delete/:id", authMW.RequireAuth(), requireSelf, usersHandler.RemoveFavorite)
	}

	travels := r.Group("/travels")
	{
		travels.GET("", placesHandler.List)
		travels.POST("", authMW.RequireAuth(), requireSelf, placesHandler.Create)
		travels.GET("/find/:key/:value", authMW.RequireAuth(), placesHandler.Find)
		travels.GET("/:id", authMW.RequireAuth(), placesHandler.Get)
		travels.PATCH("/places/:id", authMW.RequireAuth(), requireOwner, placesHandler.Update)
		travels.DELETE("/places/:id", authMW.RequireAuth(), requireOwner, placesHandler.Delete)
	}

	return r
}

// ensure the JWT manager satisfies both halves of the router's token needs
var _ Tokens = (*auth.Manager)(nil)
