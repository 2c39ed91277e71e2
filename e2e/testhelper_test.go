package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/toilettails/api/internal/auth"
	"github.com/toilettails/api/internal/client"
	"github.com/toilettails/api/internal/config"
	"github.com/toilettails/api/internal/handler"
	"github.com/toilettails/api/internal/middleware"
	"github.com/toilettails/api/internal/service"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app *fiber.App
}

// setupApp creates a Fiber app identical to main.go but with unconfigured
// external clients and nil storage, so mock fallbacks kick in everywhere.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis (localhost - must be running)
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})

	// Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })

	validate := validator.New()

	// External clients without credentials, exactly as main wires them when
	// no secrets are present
	falClient := client.NewFalClient(&config.FalConfig{BaseURL: "https://fal.run"})
	replicateClient := client.NewReplicateClient(&config.ReplicateConfig{BaseURL: "https://api.replicate.com/v1"})
	rembgClient := client.NewRembgClient(&config.RembgConfig{BaseURL: "https://api.rembg.io/v1.0"})

	// Services with nil storage → mock URLs
	uploadService := service.NewUploadService(redisClient, nil)
	renderService := service.NewRenderService(redisClient, asynqClient)

	// Handlers
	uploadHandler := handler.NewUploadHandler(uploadService)
	renderHandler := handler.NewRenderHandler(renderService, uploadService, validate)
	sceneHandler := handler.NewSceneHandler()
	storageHandler := handler.NewStorageHandler(uploadService, validate)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 25 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"fal":       falClient.IsConfigured(),
				"replicate": replicateClient.IsConfigured(),
				"rembg":     rembgClient.IsConfigured(),
				"r2":        false, // storage is nil in tests
				"auth":      testJWTSecret != "",
			},
		})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	api.Get("/scenes", sceneHandler.List)

	// Use very high rate limits so tests don't get blocked
	api.Post("/upload", rateLimiter.UploadLimit(10000), uploadHandler.Commit)

	render := api.Group("/render")
	render.Post("/start", rateLimiter.RenderLimit(10000), renderHandler.Start)
	render.Get("/status/:uploadId", renderHandler.Status)
	render.Get("/job/:jobId", renderHandler.Job)

	api.Post("/storage/sign", rateLimiter.SignLimit(10000), storageHandler.Sign)

	return &testApp{app: app}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken("test-user-123", "test@example.com", testJWTSecret)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// uploadRequest builds and performs an authenticated multipart upload.
func uploadRequest(t *testing.T, app *fiber.App, withBg bool, sceneID string) (*http.Response, error) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	addImagePart(t, writer, "pet", "pet.png")
	if withBg {
		addImagePart(t, writer, "bg", "bathroom.png")
	}
	if sceneID != "" {
		if err := writer.WriteField("scene", sceneID); err != nil {
			t.Fatalf("failed to write scene field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, "/api/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+generateToken(t))

	return app.Test(req, -1)
}

func addImagePart(t *testing.T, writer *multipart.Writer, field, filename string) {
	t.Helper()

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	header["Content-Type"] = []string{"image/png"}

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	// Minimal PNG signature; content is not decoded server-side.
	if _, err := part.Write([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}); err != nil {
		t.Fatalf("failed to write image bytes: %v", err)
	}
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// commitTestUpload creates an upload and returns its id.
func commitTestUpload(t *testing.T, app *fiber.App, sceneID string) string {
	t.Helper()

	resp, err := uploadRequest(t, app, false, sceneID)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	uploadID, _ := result["uploadId"].(string)
	if uploadID == "" {
		t.Fatal("expected uploadId in upload response")
	}
	return uploadID
}
