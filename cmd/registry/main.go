package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/go-user-registry/internal/app/server"
	"github.com/atinyakov/go-user-registry/internal/app/service"
	"github.com/atinyakov/go-user-registry/internal/asset"
	"github.com/atinyakov/go-user-registry/internal/config"
	"github.com/atinyakov/go-user-registry/internal/logger"
	"github.com/atinyakov/go-user-registry/internal/repository"
	"github.com/atinyakov/go-user-registry/internal/storage"

	_ "net/http/pprof"
)

var buildVersion string
var buildDate string
var buildCommit string

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Printf("Build version: %s\n", orNA(buildVersion))
	fmt.Printf("Build date: %s\n", orNA(buildDate))
	fmt.Printf("Build commit: %s\n", orNA(buildCommit))

	options, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(options, log.Log); err != nil {
		log.Log.Error("registry stopped", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(options *config.Options, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, closeStorage, err := newStorage(ctx, options, zapLogger)
	if err != nil {
		return err
	}
	defer closeStorage()

	assets, uploadDir := newAssets(options, zapLogger)

	// The service outlives the HTTP server so that queued asset removals
	// are finished after the last request.
	svcCtx, cancelSvc := context.WithCancel(context.Background())
	svc := service.NewUserService(svcCtx, s, assets, zapLogger)
	defer func() {
		cancelSvc()
		<-svc.Done()
	}()

	r := server.Init(svc, zapLogger, server.Options{
		CORSOrigins:   options.CORSOrigins,
		TrustedSubnet: options.TrustedSubnet,
		UploadDir:     uploadDir,
	})

	srv := &http.Server{
		Addr:              options.Address,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if options.EnablePprof {
		pprofSrv := &http.Server{Addr: "localhost:6060", ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			zapLogger.Info("Starting pprof server", zap.String("addr", pprofSrv.Addr))
			return serve(pprofSrv.ListenAndServe)
		})
		g.Go(func() error {
			<-gctx.Done()
			return pprofSrv.Close()
		})
	}

	g.Go(func() error {
		if options.EnableHTTPS {
			manager := &autocert.Manager{
				Cache:  autocert.DirCache("cache-dir"),
				Prompt: autocert.AcceptTOS,
			}
			srv.Addr = ":443"
			srv.TLSConfig = manager.TLSConfig()
			zapLogger.Info("Server is running with TLS", zap.String("addr", srv.Addr))
			return serve(func() error { return srv.ListenAndServeTLS("", "") })
		}

		zapLogger.Info("Server is running", zap.String("addr", srv.Addr))
		return serve(srv.ListenAndServe)
	})

	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// serve treats a closed server as a clean exit.
func serve(listen func() error) error {
	if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newStorage picks the users document backend: PostgreSQL when a DSN is
// configured, then a file, then process memory.
func newStorage(ctx context.Context, options *config.Options, zapLogger *zap.Logger) (service.Storage, func(), error) {
	switch {
	case options.DatabaseDSN != "":
		zapLogger.Info("using db")
		db, err := repository.InitDB(ctx, options.DatabaseDSN, zapLogger)
		if err != nil {
			return nil, nil, err
		}
		return repository.CreateDocumentRepository(db, zapLogger), func() { _ = db.Close() }, nil

	case options.FilePath != "":
		zapLogger.Info("using file", zap.String("filePath", options.FilePath))
		fs, err := storage.NewFileStorage(options.FilePath, zapLogger)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { _ = fs.Close() }, nil

	default:
		zapLogger.Info("using in memory storage")
		m, err := storage.CreateMemoryStorage()
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	}
}

// newAssets picks S3 when a bucket is configured, the upload directory
// otherwise. The returned directory is empty for S3.
func newAssets(options *config.Options, zapLogger *zap.Logger) (asset.Manager, string) {
	if options.S3.Bucket != "" {
		zapLogger.Info("storing images in s3", zap.String("bucket", options.S3.Bucket))
		client := asset.NewS3Client(asset.S3Options{
			Endpoint:        options.S3.Endpoint,
			Region:          options.S3.Region,
			Bucket:          options.S3.Bucket,
			Prefix:          options.S3.Prefix,
			AccessKeyID:     options.S3.AccessKeyID,
			SecretAccessKey: options.S3.SecretAccessKey,
		})
		return asset.NewS3Manager(client, options.S3.Bucket, options.S3.Prefix, zapLogger), ""
	}

	zapLogger.Info("storing images on disk", zap.String("dir", options.UploadDir))
	return asset.NewDiskManager(options.UploadDir, zapLogger), options.UploadDir
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
