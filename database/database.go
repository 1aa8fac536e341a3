// Package database - Handles all interaction with the ArangoDB scan archive
package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pkgscan/scandash/config"
	"github.com/pkgscan/scandash/model"
)

var logger = InitLogger() // setup the logger

// DBConnection is the structure that defined the database engine and collections
type DBConnection struct {
	Collections map[string]arangodb.Collection
	Database    arangodb.Database
}

// Define a struct to hold the index definition
type indexConfig struct {
	Collection string
	IdxName    string
	IdxField   string
}

// InitLogger sets up the Zap Logger to log to the console in a human readable format
func InitLogger() *zap.Logger {
	prodConfig := zap.NewProductionConfig()
	prodConfig.Encoding = "console"
	prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	prodConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	logger, _ := prodConfig.Build()
	return logger
}

func dbConnectionConfig(endpoint connection.Endpoint, dbuser string, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// InitializeArchive connects to the db engine and creates the archive
// database, collections, and indexes. The archive is optional: a
// connection failure is returned to the caller rather than being
// fatal, so the dashboard can run without scan history.
func InitializeArchive(cfg config.Archive) (DBConnection, error) {
	const initialInterval = 2 * time.Second
	const maxInterval = 30 * time.Second
	const maxElapsed = 2 * time.Minute

	var db arangodb.Database
	var dbConnection DBConnection

	ctx := context.Background()

	var client arangodb.Client

	//
	// Database connection with backoff retry
	//

	// Configure exponential backoff
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = maxElapsed

	// Retry logic
	err := backoff.RetryNotify(func() error {
		endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
		conn := connection.NewHttpConnection(dbConnectionConfig(endpoint, cfg.User, cfg.Password))

		client = arangodb.NewClient(conn)

		// Ask the version of the server
		versionInfo, err := client.Version(context.Background())
		if err != nil {
			return err
		}

		logger.Sugar().Infof("Archive database has version '%s' and license '%s'", versionInfo.Version, versionInfo.License)
		return nil

	}, bo, func(err error, _ time.Duration) {
		logger.Sugar().Warnf("Retrying connection to ArangoDB: %v", err)
	})

	if err != nil {
		return dbConnection, fmt.Errorf("failed to connect to ArangoDB at %s: %w", cfg.URL, err)
	}

	//
	// Database creation
	//

	exists := false
	dblist, _ := client.Databases(ctx)

	for _, dbinfo := range dblist {
		if dbinfo.Name() == cfg.Database {
			exists = true
			break
		}
	}

	if exists {
		var options arangodb.GetDatabaseOptions
		if db, err = client.GetDatabase(ctx, cfg.Database, &options); err != nil {
			return dbConnection, fmt.Errorf("failed to get database: %w", err)
		}
	} else {
		if db, err = client.CreateDatabase(ctx, cfg.Database, nil); err != nil {
			return dbConnection, fmt.Errorf("failed to create database: %w", err)
		}
	}

	//
	// Collection creation for document storage
	//

	collections := make(map[string]arangodb.Collection)
	collectionNames := []string{"scan"}

	for _, collectionName := range collectionNames {
		var col arangodb.Collection

		colExists, _ := db.CollectionExists(ctx, collectionName)
		if colExists {
			var options arangodb.GetCollectionOptions
			if col, err = db.GetCollection(ctx, collectionName, &options); err != nil {
				return dbConnection, fmt.Errorf("failed to use collection: %w", err)
			}
		} else {
			if col, err = db.CreateCollection(ctx, collectionName, nil); err != nil {
				return dbConnection, fmt.Errorf("failed to create collection: %w", err)
			}
		}

		collections[collectionName] = col
	}

	//
	// Index creation for document collections
	//

	False := false
	idxList := []indexConfig{
		{Collection: "scan", IdxName: "scan_contentsha", IdxField: "contentsha"},
		{Collection: "scan", IdxName: "scan_uploaded_at", IdxField: "uploaded_at"},
	}

	for _, idx := range idxList {
		found := false

		if indexes, err := collections[idx.Collection].Indexes(ctx); err == nil {
			for _, index := range indexes {
				if idx.IdxName == index.Name {
					found = true
					break
				}
			}
		}

		if !found {
			// Define the index options
			indexOptions := arangodb.CreatePersistentIndexOptions{
				Unique: &False,
				Sparse: &False,
				Name:   idx.IdxName,
			}

			// Create the index
			_, _, err = collections[idx.Collection].EnsurePersistentIndex(ctx, []string{idx.IdxField}, &indexOptions)
			if err != nil {
				return dbConnection, fmt.Errorf("failed to create index %s: %w", idx.IdxName, err)
			}
		}
	}

	dbConnection = DBConnection{
		Database:    db,
		Collections: collections,
	}

	return dbConnection, nil
}

// FindScanByContentHash checks if a scan exists by content hash
// Returns the document key if found, empty string if not found
func FindScanByContentHash(ctx context.Context, db arangodb.Database, contentHash string) (string, error) {
	query := `
		FOR s IN scan
			FILTER s.contentsha == @hash
			LIMIT 1
			RETURN s._key
	`
	bindVars := map[string]interface{}{
		"hash": contentHash,
	}

	cursor, err := db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return "", err
	}
	defer cursor.Close()

	if cursor.HasMore() {
		var key string
		_, err := cursor.ReadDocument(ctx, &key)
		if err != nil {
			return "", err
		}
		return key, nil
	}

	return "", nil
}

// SaveScan archives an uploaded scan, deduplicating by content hash.
// Returns the document key of the new or existing scan.
func SaveScan(ctx context.Context, db DBConnection, scan *model.Scan) (string, error) {
	existingKey, err := FindScanByContentHash(ctx, db.Database, scan.ContentSha)
	if err != nil {
		return "", err
	}
	if existingKey != "" {
		return existingKey, nil
	}

	meta, err := db.Collections["scan"].CreateDocument(ctx, scan)
	if err != nil {
		return "", err
	}
	return meta.Key, nil
}

// ListScans returns archived scans newest first, without raw content.
func ListScans(ctx context.Context, db DBConnection) ([]model.Scan, error) {
	query := `
		FOR s IN scan
			SORT s.uploaded_at DESC
			RETURN UNSET(s, "content")
	`
	cursor, err := db.Database.Query(ctx, query, &arangodb.QueryOptions{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var scans []model.Scan
	for cursor.HasMore() {
		var scan model.Scan
		if _, err := cursor.ReadDocument(ctx, &scan); err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, nil
}

// GetScan fetches one archived scan by key, raw content included.
// Returns nil when the key does not exist.
func GetScan(ctx context.Context, db DBConnection, key string) (*model.Scan, error) {
	query := `
		FOR s IN scan
			FILTER s._key == @key
			LIMIT 1
			RETURN s
	`
	cursor, err := db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"key": key,
		},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return nil, nil
	}

	var scan model.Scan
	if _, err := cursor.ReadDocument(ctx, &scan); err != nil {
		return nil, err
	}
	return &scan, nil
}
