package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSNForMySQLDriver(t *testing.T) {
	setEnv(t, "STORE_DRIVER", "mysql")
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setEnv(t, "STORE_DRIVER", "postgres")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"STORE_DRIVER", "MYSQL_DSN", "SQLITE_PATH", "REDIS_ADDR", "AUTH_SERVICE_GRPC_ADDR",
		"PAYMENTS_CURRENCY", "PAYMENT_LINK_EXPIRY_MINUTES", "CORS_ALLOW_ORIGINS", "STORE_AUTO_MIGRATE",
	} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Store.Driver != StoreDriverSQLite || cfg.Store.SQLitePath != "payments.db" || !cfg.Store.AutoMigrate {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.Redis.Addr != "" || cfg.Redis.LockTTL != 30*time.Second {
		t.Fatalf("unexpected redis defaults: %+v", cfg.Redis)
	}
	if cfg.InternalEndpoints.AuthGRPCAddr != "" {
		t.Fatalf("expected internal auth to be disabled by default, got %q", cfg.InternalEndpoints.AuthGRPCAddr)
	}
	if cfg.Payments.Currency != "INR" || cfg.Payments.LinkExpiry != 0 {
		t.Fatalf("unexpected payments defaults: %+v", cfg.Payments)
	}
	if len(cfg.CORS.AllowOrigins) != 1 || cfg.CORS.AllowOrigins[0] != "*" {
		t.Fatalf("unexpected cors defaults: %v", cfg.CORS.AllowOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, "STORE_DRIVER", "MySQL")
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/payments?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "payments-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "GRPC_PORT", "9191")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_MAX_IDLE_CONNS", "8")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "STORE_AUTO_MIGRATE", "false")
	setEnv(t, "REDIS_ADDR", "localhost:6379")
	setEnv(t, "REDIS_DB", "2")
	setEnv(t, "LOCK_TTL_SECONDS", "12")
	setEnv(t, "RAZORPAY_KEY_ID", "rzp_test_key")
	setEnv(t, "RAZORPAY_HTTP_TIMEOUT_SECONDS", "4")
	setEnv(t, "PAYMENTS_CURRENCY", "usd")
	setEnv(t, "PAYMENT_LINK_EXPIRY_MINUTES", "30")
	setEnv(t, "PAYMENTS_SYNC_STALE_AFTER_MINUTES", "13")
	setEnv(t, "PAYMENTS_JOB_BATCH_SIZE", "99")
	setEnv(t, "PAYMENTS_SYNC_INTERVAL_MINUTES", "3")
	setEnv(t, "CORS_ALLOW_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "payments-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" || cfg.GRPC.Port != "9191" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.Store.Driver != StoreDriverMySQL || cfg.Store.AutoMigrate {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Store.MaxOpenConns != 20 || cfg.Store.MaxIdleConns != 8 || cfg.Store.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected pool config: %+v", cfg.Store)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 || cfg.Redis.LockTTL != 12*time.Second {
		t.Fatalf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.Razorpay.KeyID != "rzp_test_key" || cfg.Razorpay.HTTPTimeout != 4*time.Second {
		t.Fatalf("unexpected razorpay config: %+v", cfg.Razorpay)
	}
	if cfg.Payments.Currency != "USD" || cfg.Payments.LinkExpiry != 30*time.Minute {
		t.Fatalf("unexpected payments config: %+v", cfg.Payments)
	}
	if cfg.Payments.SyncStaleAfter != 13*time.Minute || cfg.Payments.JobBatchSize != 99 {
		t.Fatalf("unexpected sync config: %+v", cfg.Payments)
	}
	if cfg.Jobs.SyncInterval != 3*time.Minute {
		t.Fatalf("unexpected sync interval: %v", cfg.Jobs.SyncInterval)
	}
	if len(cfg.CORS.AllowOrigins) != 2 || cfg.CORS.AllowOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORS.AllowOrigins)
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	unsetEnv(t, "STORE_DRIVER")
	setEnv(t, "PAYMENTS_JOB_BATCH_SIZE", "lots")
	setEnv(t, "LOCK_TTL_SECONDS", "soon")
	setEnv(t, "STORE_AUTO_MIGRATE", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Payments.JobBatchSize != 100 || cfg.Redis.LockTTL != 30*time.Second || !cfg.Store.AutoMigrate {
		t.Fatalf("expected defaults for invalid values, got %+v %+v %+v", cfg.Payments, cfg.Redis, cfg.Store)
	}
}
