package web

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/spf13/viper"
	zap "go.uber.org/zap"

	"proteindomains.org/protdom/internal/alphafold"
	"proteindomains.org/protdom/internal/interpro"
	"proteindomains.org/protdom/internal/mailer"
	"proteindomains.org/protdom/internal/models"
	"proteindomains.org/protdom/internal/uniprot"
)

type application struct {
	logger     *zap.SugaredLogger
	Models     models.Models
	Mail       mailer.Mailer
	Mux        *gin.Engine
	InterPro   *interpro.Client
	UniProt    *uniprot.Client
	AlphaFold  *alphafold.Client
	OutputRoot string
	cancels    *cancelRegistry
}

func Run(debug bool) {

	if !debug {
		// set Gin to release mode
		gin.SetMode(gin.ReleaseMode)
	}

	logger := setupLogging(debug)
	defer logger.Sync()

	db, err := initDb(viper.GetString("database.uri"))
	if err != nil {
		logger.Fatalf(err.Error())
	}

	mailConfig := mailer.MailConfig{
		Host:     viper.GetString("mail.host"),
		Port:     viper.GetInt("mail.port"),
		Username: viper.GetString("mail.username"),
		Password: viper.GetString("mail.password"),
		Sender:   viper.GetString("mail.sender"),
	}

	var mailSender mailer.Mailer
	if mailConfig.Host == "" {
		logger.Infow("no mail host configured, job notifications stay local")
		mailSender = mailer.NewMock(&mailConfig)
	} else {
		mailSender = mailer.New(&mailConfig)
	}

	mux := setupMux(debug, logger.Desugar())

	outputRoot, err := filepath.Abs(viper.GetString("output_dir"))
	if err != nil {
		logger.Fatalf(err.Error())
	}
	logger.Infow("using job output path", "path", outputRoot)

	app := &application{
		logger:     logger,
		Models:     models.NewModels(db),
		Mail:       mailSender,
		Mux:        mux,
		InterPro:   interproClient(logger),
		UniProt:    uniprotClient(logger),
		AlphaFold:  alphafoldClient(logger),
		OutputRoot: outputRoot,
		cancels:    newCancelRegistry(),
	}

	mux = app.routes()

	address := fmt.Sprintf("%s:%d", viper.GetString("server.address"), viper.GetInt("server.port"))

	srv := &http.Server{
		Addr:         address,
		Handler:      mux,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	shutdownError := make(chan error)

	// Gracefully shut down
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		s := <-quit
		logger.Infow("caught signal, shutting down", "signal", s.String())

		// stop running pipeline jobs before closing the listener
		app.cancels.cancelAll()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		shutdownError <- srv.Shutdown(ctx)
	}()

	logger.Infow("starting server",
		"address", address,
	)
	err = srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf(err.Error())
	}

	err = <-shutdownError
	if err != nil {
		logger.Fatalf(err.Error())
	}

	logger.Infow("stopped server", "address", address)

}

func setupMux(debug bool, logger *zap.Logger) *gin.Engine {
	var mux *gin.Engine
	if !debug {
		// In production mode, use zap Logger middleware
		mux = gin.New()
		mux.Use(ginzap.Ginzap(logger, time.RFC3339, true))
		mux.Use(ginzap.RecoveryWithZap(logger, true))
	} else {
		// otherwise use the default Gin logging, which is prettier
		mux = gin.Default()
	}
	return mux
}

func setupLogging(debug bool) *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if debug {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to set up logging: %s", err.Error())
	}
	return logger.Sugar()
}

func initDb(dbUri string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbUri)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func interproClient(logger *zap.SugaredLogger) *interpro.Client {
	return interpro.New(&interpro.Config{
		URL:        viper.GetString("api.interpro_url"),
		PageSize:   viper.GetInt("api.page_size"),
		Timeout:    viper.GetDuration("api.request_timeout"),
		MaxRetries: viper.GetInt("api.max_retries"),
		RetryDelay: viper.GetDuration("api.retry_delay"),
		RateLimit:  viper.GetFloat64("api.rate_limit"),
		Logger:     logger,
	})
}

func uniprotClient(logger *zap.SugaredLogger) *uniprot.Client {
	return uniprot.New(&uniprot.Config{
		URL:          viper.GetString("api.uniprot_url"),
		Timeout:      viper.GetDuration("api.request_timeout"),
		PollInterval: viper.GetDuration("processing.poll_interval"),
		Logger:       logger,
	})
}

func alphafoldClient(logger *zap.SugaredLogger) *alphafold.Client {
	return alphafold.New(&alphafold.Config{
		URL:        viper.GetString("api.alphafold_url"),
		Timeout:    viper.GetDuration("api.request_timeout"),
		MaxRetries: viper.GetInt("api.max_retries"),
		RetryDelay: viper.GetDuration("api.retry_delay"),
		Workers:    viper.GetInt("processing.workers"),
		Logger:     logger,
	})
}
