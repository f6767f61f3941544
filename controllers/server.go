package controllers

import (
	"context"
	"log"
	"net/http"
	"os"

	"outfitapi/models"
	"outfitapi/services"
	"outfitapi/tasks"

	"github.com/go-playground/validator"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// ServerDeps are the collaborators handed to the controllers. Optional ones
// may be nil, the routes depending on them answer 503.
type ServerDeps struct {
	Google     services.GoogleServiceProvider
	Apple      services.AppleServiceProvider
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
	Generator  services.OutfitGenerator
	Weather    services.WeatherProvider
	Pinterest  services.PinterestProvider
	Push       services.PushSender
	Tasks      tasks.Enqueuer
}

func SetupServer(db *gorm.DB, deps ServerDeps) *echo.Echo {
	if deps.AWSService != nil {
		err := deps.AWSService.InitPresignClient(context.Background())
		if err != nil {
			log.Fatal("Failed to initialize AWS provider: S3")
		}
	}

	e := echo.New()
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	v.RegisterValidation("occasion", models.ValidateOccasion)
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authGroup := e.Group("auth")
	authController := AuthController{Google: deps.Google, Apple: deps.Apple}
	authController.AuthRoutes(authGroup)

	shopGroup := e.Group("shop", echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))))
	shopGroup.Use(UserMiddleware)

	preferences := &services.PreferenceStore{DB: db}

	profileController := ProfileController{Preferences: preferences}
	profileController.ProfileRoutes(shopGroup.Group("/profile"))

	clothesController := ClothesController{AWSService: deps.AWSService, URLCache: deps.URLCache, Tasks: deps.Tasks}
	clothesController.ClothingRoutes(shopGroup.Group("/clothes"))

	outfitsController := OutfitsController{Generator: deps.Generator, URLCache: deps.URLCache}
	outfitsController.OutfitRoutes(shopGroup.Group("/outfits"))

	communityController := CommunityController{Push: deps.Push, URLCache: deps.URLCache}
	communityController.FeedRoutes(shopGroup.Group("/feed"))
	communityController.UserRoutes(shopGroup.Group("/users"))

	integrationsController := IntegrationsController{Weather: deps.Weather, Pinterest: deps.Pinterest, Preferences: preferences}
	integrationsController.WeatherRoutes(shopGroup.Group("/weather"))
	integrationsController.PinterestRoutes(shopGroup.Group("/pinterest"))

	return e
}
