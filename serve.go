package main

import (
	"fmt"
	"io"

	"maintflow/bizerror"
	"maintflow/client/es"
	"maintflow/common"
	"maintflow/config"
	"maintflow/domain/workflow"
	"maintflow/event"
	"maintflow/indices"
	"maintflow/infra/tracing"
	"maintflow/notify"
	"maintflow/notify/mail"
	"maintflow/persistence"
	"maintflow/servehttp"
	"maintflow/session"
	"maintflow/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	common.ConfigureLog(cfg.Log.Level)
	common.SetServiceName(cfg.Tracing.ServiceName)
	logrus.Info("service start")

	if cfg.Tracing.Enabled {
		closer, err := tracing.InitGlobalTracer(common.GetServiceName())
		if err != nil {
			return fmt.Errorf("failed to init tracer: %w", err)
		}
		defer closer.Close()
	}

	recordStore, closeStore, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore.Close()

	validator, resolver, err := buildRules(cfg)
	if err != nil {
		return err
	}

	transport, err := buildTransport(cfg)
	if err != nil {
		return err
	}
	dispatcher, err := notify.NewDispatcher(transport, notify.Options{
		Concurrency:    cfg.Dispatch.Concurrency,
		SendTimeout:    cfg.Dispatch.SendTimeout,
		Locale:         cfg.Notify.Locale,
		LinkBaseURL:    cfg.Notify.LinkBaseURL,
		CurrencySymbol: cfg.Notify.CurrencySymbol,
	})
	if err != nil {
		return err
	}

	manager := workflow.NewWorkflowManager(recordStore, validator, resolver, dispatcher)
	session.RegisterStaticTokens(cfg.Auth.Tokens)
	authFilter := session.SimpleAuthFilter()

	engine := gin.Default()
	engine.Use(tracing.TracingIngress())
	engine.Use(bizerror.ErrorHandling())
	servehttp.RegisterIndexRestAPI(engine)
	session.RegisterSessionRestAPI(engine, authFilter)
	servehttp.RegisterEntityRestAPI(engine, manager, authFilter)
	servehttp.RegisterTransitionRestAPI(engine, manager, authFilter)
	servehttp.RegisterRecipientRestAPI(engine, manager, authFilter)

	if cfg.Elasticsearch.Enabled {
		if _, err := es.CreateClient(cfg.Elasticsearch); err != nil {
			return fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		if cfg.Elasticsearch.Index != "" {
			indices.AuditIndexName = cfg.Elasticsearch.Index
		}
		event.EventHandlers = append(event.EventHandlers, indices.AuditEventHandler)
		indices.RegisterAuditRestAPI(engine, authFilter)
	}

	servehttp.StartHTTPServer(engine, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

func buildStore(cfg *config.Config) (store.RecordStore, io.Closer, error) {
	if cfg.Store.Backend == config.StoreMemory {
		logrus.Warn("using in-memory record store, data is lost on restart")
		return store.NewMemoryStore(), closerFunc(func() error { return nil }), nil
	}

	dbConfig := cfg.Database
	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			return nil, nil, fmt.Errorf("failed to prepare database: %w", err)
		}
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: &dbConfig}
	if err := ds.Start(); err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	gormStore := store.NewGormStore(ds)
	// database migration (race condition)
	if err := gormStore.Migrate(); err != nil {
		ds.Stop()
		return nil, nil, fmt.Errorf("database migration failed: %w", err)
	}
	return gormStore, closerFunc(func() error { ds.Stop(); return nil }), nil
}

func buildTransport(cfg *config.Config) (notify.Transport, error) {
	if cfg.Notify.Transport == config.TransportSMTP {
		t, err := mail.NewTransport(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return notify.LogTransport{}, nil
}
