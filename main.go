// package main provides the entry point and API handlers for the
// scandash service: loading scanner CSV output, serving dashboard
// aggregates as JSON, exporting the normalized dataset, and exposing
// the GraphQL query surface.
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/graphql-go/graphql"

	"github.com/pkgscan/scandash/config"
	"github.com/pkgscan/scandash/database"
	"github.com/pkgscan/scandash/dataset"
	gqlschema "github.com/pkgscan/scandash/graphql"
	"github.com/pkgscan/scandash/model"
	"github.com/pkgscan/scandash/stats"
	"github.com/pkgscan/scandash/util"
)

var logger = database.InitLogger()

var (
	db             database.DBConnection
	archiveEnabled bool
)

// ErrorResponse is the envelope for fatal-to-the-view errors. A failed
// load never produces a half-populated page: the message is the whole
// response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UploadResponse returns the result of dataset upload operations
type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Rows    int    `json:"rows,omitempty"`
	ScanKey string `json:"scan_key,omitempty"`
}

// PathRequest represents the request body for selecting a CSV path
type PathRequest struct {
	Path string `json:"path"`
}

// session holds the state the dashboard shell mutates between renders:
// the chosen CSV path and an optionally uploaded in-memory dataset.
// Renders never write to it; they take an immutable view context
// snapshot first and compute everything from that.
type session struct {
	mu       sync.RWMutex
	cfg      config.Config
	csvPath  string
	uploaded *model.Dataset
}

// viewContext is the immutable per-render value: one dataset plus the
// aggregation options in force when the render started.
type viewContext struct {
	ds   *model.Dataset
	opts stats.Options
}

func newSession(cfg config.Config) *session {
	return &session{cfg: cfg, csvPath: cfg.CSVPath}
}

// view constructs a view context for one render. The uploaded dataset
// wins over the configured path; path-based datasets are re-read on
// every render, never cached.
func (s *session) view(ecosystem string) (viewContext, error) {
	s.mu.RLock()
	uploaded := s.uploaded
	csvPath := s.csvPath
	s.mu.RUnlock()

	opts := s.options(ecosystem)
	if uploaded != nil {
		return viewContext{ds: uploaded, opts: opts}, nil
	}

	ds, err := dataset.LoadFile(csvPath)
	if err != nil {
		return viewContext{}, err
	}
	return viewContext{ds: ds, opts: opts}, nil
}

func (s *session) options(ecosystem string) stats.Options {
	return stats.Options{
		Ecosystem:        ecosystem,
		TopN:             s.cfg.TopN,
		MissingEcosystem: s.cfg.Policy(),
	}
}

func (s *session) setUploaded(ds *model.Dataset) {
	s.mu.Lock()
	s.uploaded = ds
	s.mu.Unlock()
}

func (s *session) setPath(path string) {
	s.mu.Lock()
	s.csvPath = path
	s.uploaded = nil // selecting a path clears the uploaded dataset
	s.mu.Unlock()
}

// Dataset implements gqlschema.Provider.
func (s *session) Dataset() (*model.Dataset, error) {
	vc, err := s.view("")
	if err != nil {
		return nil, err
	}
	return vc.ds, nil
}

// Options implements gqlschema.Provider.
func (s *session) Options(ecosystem string) stats.Options {
	return s.options(ecosystem)
}

// Frameworks implements gqlschema.Provider.
func (s *session) Frameworks(ecosystem string) stats.FrameworkTable {
	return s.cfg.FrameworkTable(ecosystem)
}

func viewError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
		Success: false,
		Message: err.Error(),
	})
}

// ============================================================================
// View Handlers
// ============================================================================

// GetOverview handles GET requests for the main dashboard aggregates
func GetOverview(s *session) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vc, err := s.view("")
		if err != nil {
			return viewError(c, err)
		}
		return c.JSON(stats.Overview(vc.ds, vc.opts))
	}
}

// GetEcosystem handles GET requests for one ecosystem-scoped view
func GetEcosystem(s *session) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ecosystem := strings.ToLower(c.Params("ecosystem"))

		vc, err := s.view(ecosystem)
		if err != nil {
			return viewError(c, err)
		}
		return c.JSON(stats.Ecosystem(vc.ds, s.cfg.FrameworkTable(ecosystem), vc.opts))
	}
}

// GetPackage handles GET requests for the per-package drill-down view
func GetPackage(s *session) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := util.DecodeParam(c.Params("name"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Success: false,
				Message: "invalid package name: " + err.Error(),
			})
		}

		vc, err := s.view(c.Query("ecosystem"))
		if err != nil {
			return viewError(c, err)
		}

		report := stats.Package(vc.ds, name, vc.opts)
		if report.Occurrences == 0 {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Message: fmt.Sprintf("package not found: %s", name),
			})
		}
		return c.JSON(report)
	}
}

// GetExport handles GET requests for the CSV echo of the current
// normalized dataset
func GetExport(s *session) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vc, err := s.view("")
		if err != nil {
			return viewError(c, err)
		}

		out, err := dataset.Export(vc.ds)
		if err != nil {
			return viewError(c, err)
		}

		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="filtered_packages.csv"`)
		return c.Send(out)
	}
}

// PostDataset handles POST requests uploading a scan CSV. The parsed
// dataset becomes the session dataset; when the archive is enabled the
// raw bytes are archived with content-hash dedupe.
func PostDataset(s *session) fiber.Handler {
	return func(c *fiber.Ctx) error {
		content, fileName, err := uploadContent(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(UploadResponse{
				Success: false,
				Message: "invalid upload: " + err.Error(),
			})
		}

		ds, err := dataset.Load(bytes.NewReader(content))
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(UploadResponse{
				Success: false,
				Message: "failed to parse uploaded CSV: " + err.Error(),
			})
		}

		s.setUploaded(ds)

		message := "dataset uploaded"
		scanKey := ""
		if archiveEnabled {
			scan := model.NewScan()
			scan.FileName = fileName
			scan.RowCount = ds.Len()
			scan.Columns = ds.Columns
			scan.Content = content
			hash := sha256.Sum256(content)
			scan.ContentSha = hex.EncodeToString(hash[:])

			key, err := database.SaveScan(context.Background(), db, scan)
			if err != nil {
				logger.Sugar().Errorf("Failed to archive scan: %v", err)
				message = "dataset uploaded (archiving failed)"
			} else {
				scanKey = key
				message = "dataset uploaded and archived"
			}
		}

		return c.Status(fiber.StatusCreated).JSON(UploadResponse{
			Success: true,
			Message: message,
			Rows:    ds.Len(),
			ScanKey: scanKey,
		})
	}
}

// PutDatasetPath handles PUT requests selecting the CSV path used when
// no upload is active
func PutDatasetPath(s *session) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req PathRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Success: false,
				Message: "Invalid request body: " + err.Error(),
			})
		}
		if util.IsEmpty(req.Path) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Success: false,
				Message: "path is a required field",
			})
		}

		s.setPath(req.Path)
		return c.JSON(fiber.Map{
			"success": true,
			"path":    req.Path,
		})
	}
}

// GetScans handles GET requests listing archived scans
func GetScans(c *fiber.Ctx) error {
	if !archiveEnabled {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Success: false,
			Message: "scan archive is not enabled",
		})
	}

	scans, err := database.ListScans(context.Background(), db)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Message: "Failed to list scans: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(scans),
		"scans":   scans,
	})
}

// GetScanByKey handles GET requests fetching one archived scan
func GetScanByKey(c *fiber.Ctx) error {
	if !archiveEnabled {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Success: false,
			Message: "scan archive is not enabled",
		})
	}

	key := c.Params("key")
	scan, err := database.GetScan(context.Background(), db, key)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Message: "Failed to fetch scan: " + err.Error(),
		})
	}
	if scan == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Success: false,
			Message: "scan not found: " + key,
		})
	}
	return c.JSON(scan)
}

// uploadContent extracts the CSV bytes from a multipart form file or
// the raw request body.
func uploadContent(c *fiber.Ctx) ([]byte, string, error) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()

		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(f); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), file.Filename, nil
	}

	body := c.Body()
	if len(body) == 0 {
		return nil, "", fmt.Errorf("request carries no CSV content")
	}
	content := make([]byte, len(body))
	copy(content, body)
	return content, "upload.csv", nil
}

// ============================================================================
// GraphQL Handler
// ============================================================================

// GraphQLHandler handles GraphQL requests
func GraphQLHandler(schema graphql.Schema) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var params struct {
			Query         string                 `json:"query"`
			OperationName string                 `json:"operationName"`
			Variables     map[string]interface{} `json:"variables"`
		}

		if err := c.BodyParser(&params); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"errors": []map[string]interface{}{
					{
						"message": "Invalid request body",
					},
				},
			})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  params.Query,
			VariableValues: params.Variables,
			OperationName:  params.OperationName,
		})

		if len(result.Errors) > 0 {
			logger.Sugar().Warnf("GraphQL errors: %v", result.Errors)
		}

		return c.JSON(result)
	}
}

// ============================================================================
// App wiring
// ============================================================================

func newApp(s *session, schema graphql.Schema) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "scandash API v1.0",
		BodyLimit: 50 * 1024 * 1024, // 50MB limit for CSV uploads
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
		})
	})

	// API routes
	api := app.Group("/api/v1")

	api.Get("/overview", GetOverview(s))
	api.Get("/ecosystems/:ecosystem", GetEcosystem(s))
	api.Get("/packages/:name", GetPackage(s))
	api.Get("/export", GetExport(s))

	api.Post("/datasets", PostDataset(s))
	api.Put("/datasets/path", PutDatasetPath(s))

	api.Get("/scans", GetScans)
	api.Get("/scans/:key", GetScanByKey)

	api.Post("/graphql", GraphQLHandler(schema))

	return app
}

func main() {
	cfg, err := config.Load(util.GetEnvDefault("SCANDASH_CONFIG", "scandash.yaml"))
	if err != nil {
		logger.Sugar().Fatalf("Failed to load config: %v", err)
	}

	// The archive is optional: a connection failure downgrades to a
	// history-less dashboard rather than refusing to start.
	if cfg.Archive.Enabled {
		conn, err := database.InitializeArchive(cfg.Archive)
		if err != nil {
			logger.Sugar().Warnf("Scan archive unavailable, continuing without history: %v", err)
		} else {
			db = conn
			archiveEnabled = true
		}
	}

	s := newSession(cfg)

	// Initialize GraphQL schema
	gqlschema.InitProvider(s)
	schema, err := gqlschema.CreateSchema()
	if err != nil {
		logger.Sugar().Fatalf("Failed to create GraphQL schema: %v", err)
	}

	app := newApp(s, schema)

	// Start server
	logger.Sugar().Infof("Starting server on port %s", cfg.Port)
	logger.Sugar().Infof("GraphQL endpoint available at /api/v1/graphql")
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Sugar().Fatalf("Failed to start server: %v", err)
	}
}
