// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"consentry/internal/audit"
	"consentry/internal/audit/relay"
	"consentry/internal/decision"
	"consentry/internal/decision/adapters"
	decisionmetrics "consentry/internal/decision/metrics"
	"consentry/internal/ledger"
	"consentry/internal/platform/config"
	"consentry/internal/platform/httpserver"
	"consentry/internal/platform/logger"
	platformredis "consentry/internal/platform/redis"
	"consentry/internal/policy"
	"consentry/internal/preference"
	"consentry/internal/request"
	"consentry/internal/retention"
	"consentry/internal/subject"
	httptransport "consentry/internal/transport/http"
	id "consentry/pkg/domain"
	"consentry/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores. Without a Postgres DSN everything runs in memory, which keeps
	// local development and demos dependency-free.
	var (
		db           *sql.DB
		subjectStore subject.Store
		ledgerStore  ledger.Store
		policyStore  policy.Store
		ruleStore    retention.RuleStore
		jobStore     retention.JobStore
		requestStore request.Store
		auditStore   audit.Store
		outboxSource relay.Source

		txRunner tx.Runner = tx.NoopRunner{}
	)
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}

		subjectStore = subject.NewPostgresStore(db)
		ledgerStore = ledger.NewPostgresStore(db)
		policyStore = policy.NewPostgresStore(db)
		ruleStore = retention.NewPostgresRuleStore(db)
		jobStore = retention.NewPostgresJobStore(db)
		requestStore = request.NewPostgresStore(db)
		pgAudit := audit.NewPostgresStore(db)
		auditStore = pgAudit
		outboxSource = pgAudit
		txRunner = tx.NewSQLRunner(db)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		subjectStore = subject.NewInMemoryStore()
		ledgerStore = ledger.NewInMemoryStore()
		policyStore = policy.NewInMemoryStore()
		ruleStore = retention.NewInMemoryRuleStore()
		jobStore = retention.NewInMemoryJobStore()
		requestStore = request.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := audit.NewPublisher(auditStore, audit.WithLogger(log))

	// Services.
	subjectSvc := subject.NewService(subjectStore, publisher)
	ledgerSvc := ledger.NewService(ledgerStore, publisher, txRunner, log)
	policyCache := policy.NewCache(redisClient, cfg.PolicyCacheTTL, log)
	policySvc := policy.NewService(policyStore, policyCache, publisher, log)
	preferenceSvc := preference.NewService(ledgerSvc, log)

	resolver, err := adapters.NewPrefixResolver(nil, id.JurisdictionRestOfWorld)
	if err != nil {
		return err
	}
	decisionSvc := decision.NewService(
		subjectSvc, policySvc, ledgerSvc, resolver, publisher,
		decisionmetrics.New(), log,
	)

	lease := retention.NewLease(redisClient, cfg.RetentionLease)
	retentionSvc := retention.NewService(ruleStore, jobStore, ledgerStore, subjectStore, requestStore, publisher, lease, log)
	requestSvc := request.NewService(requestStore, subjectSvc, subjectStore, publisher, txRunner, log)

	if err := seed(ctx, cfg, policySvc, retentionSvc); err != nil {
		return err
	}

	// Outbox relay, only when both Postgres and Kafka are configured.
	if outboxSource != nil && len(cfg.KafkaBrokers) > 0 {
		rl, err := relay.New(relay.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.AuditTopic}, outboxSource, log)
		if err != nil {
			return err
		}
		go func() {
			if err := rl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit relay stopped", "error", err)
			}
		}()
	}

	router := httptransport.NewRouter(httptransport.Handlers{
		Subjects:    httptransport.NewSubjectHandler(subjectSvc, log),
		Consents:    httptransport.NewConsentHandler(ledgerSvc, log),
		Preferences: httptransport.NewPreferenceHandler(preferenceSvc, log),
		Decisions:   httptransport.NewDecisionHandler(decisionSvc, log),
		Policies:    httptransport.NewPolicyHandler(policySvc, log),
		Requests:    httptransport.NewRequestHandler(requestSvc, log),
		Admin:       httptransport.NewAdminHandler(retentionSvc, auditStore, log),
	}, []byte(cfg.AdminJWTKey))

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting consentry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seed loads the optional policy catalog and legacy retention schedule.
func seed(ctx context.Context, cfg config.Config, policySvc *policy.Service, retentionSvc *retention.Service) error {
	if cfg.PolicyFile != "" {
		data, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			return err
		}
		doc, err := policy.ParseDocument(data)
		if err != nil {
			return err
		}
		if err := policySvc.Seed(ctx, doc); err != nil {
			return err
		}
	}
	if cfg.RetentionFile != "" {
		data, err := os.ReadFile(cfg.RetentionFile)
		if err != nil {
			return err
		}
		if err := retentionSvc.SeedRules(ctx, data); err != nil {
			return err
		}
	}
	return nil
}
