package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/config"
	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/repository"
	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/service"
)

func main() {
	logger := logrus.New()
	// Nivel de logging (Debug para desarrollo, Info para producción)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Carga de la configuración del proceso
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Error cargando la configuración: %v", err)
	}

	// Conexión a PostgreSQL
	db, err := sql.Open("postgres", fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	))
	if err != nil {
		logger.Fatalf("Error conectando a la base de datos: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Error verificando la conexión a la base de datos: %v", err)
	}

	// Inicialización de repositorios
	logger.Info("Inicializando repositorios...")
	accountRepo := repository.NewAccountRepository(db, logger)
	transactionRepo := repository.NewTransactionRepository(db, logger)
	scheduleRepo := repository.NewScheduleRepository(db, logger)
	beneficiaryRepo := repository.NewBeneficiaryRepository(db, logger)
	providerRepo := repository.NewProviderRepository(db, logger)
	clientRepo := repository.NewClientRepository(db, logger)

	// Auditoría: RabbitMQ si hay broker configurado, logs en caso contrario
	var auditor service.Auditor
	var auditPublisher *service.AuditPublisher
	if cfg.AMQPURL != "" {
		auditPublisher, err = service.NewAuditPublisher(cfg.AMQPURL, cfg.AuditExchange, logger)
		if err != nil {
			logger.Fatalf("Error conectando al broker de auditoría: %v", err)
		}
		auditor = auditPublisher
	} else {
		logger.Warn("AMQP_URL no configurado, la auditoría se escribirá solo en los logs")
		auditor = service.NewLogAuditor(logger)
	}

	// Inicialización de servicios
	logger.Info("Inicializando servicios...")
	emailSender := service.NewEmailSender(logger)
	ledger := service.NewBalanceLedger(accountRepo, transactionRepo, scheduleRepo, logger)
	guard := service.NewIdempotencyGuard(transactionRepo, logger)
	transferService := service.NewTransferService(
		ledger,
		guard,
		accountRepo,
		transactionRepo,
		beneficiaryRepo,
		clientRepo,
		auditor,
		emailSender,
		logger,
	)
	paymentService := service.NewPaymentService(
		ledger,
		guard,
		accountRepo,
		transactionRepo,
		providerRepo,
		clientRepo,
		auditor,
		emailSender,
		logger,
	)
	scheduler := service.NewScheduler(transactionRepo, transferService, paymentService, logger)

	// Planificador de transacciones programadas
	logger.Info("Configurando el planificador de transacciones programadas...")
	c := cron.New()
	_, err = c.AddFunc(cfg.SchedulerSpec, func() {
		if err := scheduler.ProcessDue(context.Background()); err != nil {
			logger.WithError(err).Error("Error procesando transacciones programadas")
		}
	})
	if err != nil {
		logger.Fatalf("Error configurando el planificador: %v", err)
	}
	c.Start()

	// Endpoint de salud del proceso
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Infof("Iniciando servidor en %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error del servidor: %v", err)
		}
	}()

	// Espera de señales para el apagado ordenado
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Apagando el proceso...")
	<-c.Stop().Done()
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Errorf("Error apagando el servidor: %v", err)
	}
	if auditPublisher != nil {
		auditPublisher.Close()
	}
	logger.Info("Proceso detenido correctamente")
}
