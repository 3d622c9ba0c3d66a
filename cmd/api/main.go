package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/stockledger-api/docs"
	"github.com/jhoicas/stockledger-api/internal/application/billing"
	"github.com/jhoicas/stockledger-api/internal/application/catalog"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/application/purchasing"
	"github.com/jhoicas/stockledger-api/internal/application/sales"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	infraaudit "github.com/jhoicas/stockledger-api/internal/infrastructure/audit"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/fiscal"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/stockledger-api/internal/infrastructure/pdf"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/stockledger-api/internal/interfaces/http"
	"github.com/jhoicas/stockledger-api/pkg/config"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

// @title                       StockLedger API
// @version                     1.0
// @description                 Libro de inventario y ciclo de documentos comerciales.
// @BasePath                    /
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		App:   cfg.App.Name,
	})
	zl := log.Zerolog()
	log.Info().
		Str("env", cfg.App.Env).
		Str("store", cfg.Store.Driver).
		Str("fiscal_env", cfg.Fiscal.AppEnv).
		Msg("iniciando aplicación")

	ctx := context.Background()

	var (
		txRunner repository.TxRunner
		repos    repository.Repos
		ping     httpRouter.HealthCheck
	)
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		store := memory.NewStore(memory.WithMaxAttempts(cfg.Ledger.MaxTxAttempts))
		txRunner, repos = store, store.Repos()
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB, log.Component("postgres"))
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		runner := postgres.NewTxRunner(pool, cfg.Ledger.MaxTxAttempts, zl)
		txRunner, repos = runner, runner.Repos()
		ping = pool.Ping
	}

	issuer := fiscal.IssuerInfo{TaxID: cfg.Fiscal.IssuerTaxID, Series: cfg.Fiscal.Series}
	gateway, err := fiscal.NewGateway(fiscal.GatewayConfig{
		AppEnv:       cfg.Fiscal.AppEnv,
		Endpoint:     cfg.Fiscal.Endpoint,
		CertPath:     cfg.Fiscal.CertPath,
		CertPassword: cfg.Fiscal.CertPassword,
		Issuer:       issuer,
		HTTPTimeout:  cfg.Fiscal.Timeout,
	}, zl)
	if err != nil {
		log.Fatal().Err(err).Msg("gateway fiscal")
	}

	// Auditoría: AMQP si hay broker configurado, siempre también al log.
	var auditSink ports.AuditSink = infraaudit.NewLogSink(zl)
	if cfg.Audit.AMQPURL != "" {
		amqpSink, err := infraaudit.DialAMQPSink(cfg.Audit.AMQPURL, cfg.Audit.Exchange, zl)
		if err != nil {
			log.Error().Err(err).Msg("broker de auditoría no disponible, solo log")
		} else {
			defer amqpSink.Close()
			auditSink = infraaudit.MultiSink{amqpSink, auditSink}
		}
	}

	ledgerUC := inventory.NewLedgerUseCase(txRunner, repos, auditSink, inventory.Config{
		AllowNegativeRecount: cfg.Ledger.AllowNegativeRecount,
	}, zl)
	salesUC := sales.NewUseCase(txRunner, repos, ledgerUC, auditSink, zl)
	purchasingUC := purchasing.NewUseCase(txRunner, repos, ledgerUC, auditSink, zl)
	catalogUC := catalog.NewProductUseCase(repos.Products, zl)

	// PDF local: respaldo cuando la autoridad no entrega la representación gráfica
	renderer := infrapdf.NewInvoiceRenderer(infrapdf.Issuer{Name: cfg.Fiscal.IssuerName, TaxID: cfg.Fiscal.IssuerTaxID})
	coordinator := billing.NewCoordinator(txRunner, repos, gateway, renderer, auditSink, billing.Config{
		Timeout:     cfg.Fiscal.Timeout,
		LeaseMargin: cfg.Fiscal.LeaseMargin,
	}, zl)

	app := fiber.New(fiber.Config{
		AppName:     cfg.App.Name,
		ReadTimeout: time.Second * 10,
		// la emisión fiscal espera a la autoridad hasta FISCAL_TIMEOUT
		WriteTimeout: cfg.Fiscal.Timeout + time.Second*15,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	docs.SwaggerInfo.Title = cfg.App.Name + " API"
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    docs.SwaggerInfo.Title,
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Catalog:    catalogUC,
		Ledger:     ledgerUC,
		Sales:      salesUC,
		Purchasing: purchasingUC,
		Billing:    coordinator,
		JWTSecret:  cfg.JWT.Secret,
		Ping:       ping,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Fiscal.Timeout+10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
