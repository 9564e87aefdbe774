package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
	"github.com/vibast-solutions/ms-go-payment-links/app/lock"
	"github.com/vibast-solutions/ms-go-payment-links/app/metrics"
	"github.com/vibast-solutions/ms-go-payment-links/app/provider"
	"github.com/vibast-solutions/ms-go-payment-links/app/repository"
	"github.com/vibast-solutions/ms-go-payment-links/app/service"
	"github.com/vibast-solutions/ms-go-payment-links/config"
)

type recordStore interface {
	Create(ctx context.Context, record *entity.PaymentRecord) error
	Update(ctx context.Context, requestID string, patch entity.PaymentRecordPatch, now time.Time) error
	FindByRequestID(ctx context.Context, requestID string) (*entity.PaymentRecord, error)
	List(ctx context.Context, filter repository.RecordFilter) ([]*entity.PaymentRecord, error)
	ListForSync(ctx context.Context, before time.Time, limit int32) ([]*entity.PaymentRecord, error)
	MarkSynced(ctx context.Context, requestID string, at time.Time) error
}

type auditStore interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
	ListAfter(ctx context.Context, afterSeq uint64, limit int32) ([]*entity.AuditEntry, error)
}

type unlinkedStore interface {
	Create(ctx context.Context, capture *entity.UnlinkedCapture) error
	List(ctx context.Context, limit int32) ([]*entity.UnlinkedCapture, error)
}

type stores struct {
	records  recordStore
	audit    auditStore
	unlinked unlinkedStore
	db       *sql.DB
}

// appRuntime is everything a command needs once configuration is loaded.
type appRuntime struct {
	cfg            *config.Config
	paymentService *service.PaymentService
	metrics        *metrics.Metrics
	audit          auditStore
	db             *sql.DB
	closers        []func() error
}

func (r *appRuntime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			logrus.WithError(err).Warn("Failed to release resource")
		}
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustCreateRuntime() *appRuntime {
	cfg := mustLoadConfig()

	rt, err := newRuntime(context.Background(), cfg, nil)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize payment service")
	}
	return rt
}

// newRuntime wires stores, the lock and the provider. A nil paymentProvider
// selects the Razorpay client built from configuration.
func newRuntime(ctx context.Context, cfg *config.Config, paymentProvider provider.Provider) (*appRuntime, error) {
	rt := &appRuntime{cfg: cfg, metrics: metrics.New()}

	st, err := openStores(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	rt.audit = st.audit
	rt.db = st.db
	if st.db != nil {
		rt.closers = append(rt.closers, st.db.Close)
	}

	locker, closeLocker, err := newLocker(ctx, cfg.Redis)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if closeLocker != nil {
		rt.closers = append(rt.closers, closeLocker)
	}

	if paymentProvider == nil {
		paymentProvider = provider.NewRazorpayProvider(provider.RazorpayConfig{
			KeyID:       cfg.Razorpay.KeyID,
			KeySecret:   cfg.Razorpay.KeySecret,
			HTTPTimeout: cfg.Razorpay.HTTPTimeout,
		})
	}
	if cfg.Razorpay.WebhookSecret == "" {
		logrus.Warn("RAZORPAY_WEBHOOK_SECRET is empty, every webhook will be rejected")
	}

	rt.paymentService = service.NewPaymentService(
		st.records,
		st.audit,
		st.unlinked,
		locker,
		paymentProvider,
		cfg.Payments,
		cfg.Razorpay.WebhookSecret,
		rt.metrics,
	)
	return rt, nil
}

func openStores(ctx context.Context, cfg config.StoreConfig) (*stores, error) {
	if cfg.Driver == config.StoreDriverMemory {
		logrus.Warn("Using the in-memory store, records are lost on restart")
		return &stores{
			records:  repository.NewMemoryPaymentRecordRepository(),
			audit:    repository.NewMemoryAuditLogRepository(),
			unlinked: repository.NewMemoryUnlinkedCaptureRepository(),
		}, nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, db, cfg.Driver); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &stores{
		records:  repository.NewPaymentRecordRepository(db),
		audit:    repository.NewAuditLogRepository(db),
		unlinked: repository.NewUnlinkedCaptureRepository(db),
		db:       db,
	}, nil
}

func openDatabase(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case config.StoreDriverMySQL:
		dsn, dsnErr := mysqlDSN(cfg.MySQLDSN)
		if dsnErr != nil {
			return nil, dsnErr
		}
		db, err = sql.Open(repository.DriverMySQL, dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	case config.StoreDriverSQLite:
		db, err = sql.Open(repository.DriverSQLite, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// single writer; also keeps ":memory:" databases on one connection
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// mysqlDSN forces parseTime and UTC so DATETIME columns scan into time.Time.
func mysqlDSN(raw string) (string, error) {
	dsnCfg, err := mysqldriver.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("parse MYSQL_DSN: %w", err)
	}
	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.UTC
	return dsnCfg.FormatDSN(), nil
}

func newLocker(ctx context.Context, cfg config.RedisConfig) (lock.Locker, func() error, error) {
	if cfg.Addr == "" {
		return lock.NewKeyedMutex(), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	logrus.WithField("addr", cfg.Addr).Info("Using Redis for per-record locks")
	return &lock.RedisLocker{Client: client, TTL: cfg.LockTTL}, client.Close, nil
}
