package router_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading/internal/config"
	"github.com/noah-isme/gema-grading/internal/handler"
	"github.com/noah-isme/gema-grading/internal/middleware"
	"github.com/noah-isme/gema-grading/internal/models"
	"github.com/noah-isme/gema-grading/internal/repository"
	"github.com/noah-isme/gema-grading/internal/router"
	"github.com/noah-isme/gema-grading/internal/service"
)

const testSecret = "router-secret"

func newRouterApp(t *testing.T) (*fiber.App, models.Assessment) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:router_%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Course{}, &models.Assessment{}, &models.Question{}))

	course := models.Course{Code: "MTH1", Title: "Algebra"}
	require.NoError(t, db.Create(&course).Error)
	assessment := models.Assessment{CourseID: course.ID, Title: "Linear equations", Kind: models.AssessmentKindExam}
	require.NoError(t, db.Create(&assessment).Error)

	logger := zerolog.Nop()
	repo := repository.NewAssessmentRepository(db)
	assessments := handler.NewAssessmentHandler(
		service.NewAssessmentService(repo, validator.New(), logger),
		service.NewAssignmentStatusService(repo, nil, time.Minute, logger),
		logger,
	)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "GEMA Grading"}, router.Dependencies{
		AssessmentHandler: assessments,
		JWTMiddleware:     middleware.JWTProtected(testSecret),
		HealthProbes: map[string]handler.HealthProbe{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
	})
	return app, assessment
}

func signedToken(t *testing.T, subject uint, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", subject),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestRouterPublicEndpoints(t *testing.T) {
	app, _ := newRouterApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "GEMA Grading", resp.Header.Get("X-Application"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouterProtectsGradingRoutes(t *testing.T) {
	app, assessment := newRouterApp(t)
	path := fmt.Sprintf("/api/v1/assessments/%d", assessment.ID)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, 12, "student"))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
