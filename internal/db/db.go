package db

import (
	"errors"
	"fmt"
	"os"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gestion-immeubles/auth"
	"gestion-immeubles/internal/config"
	"gestion-immeubles/internal/models"
)

// Connect opens the PostgreSQL connection with a short retry loop (the
// database container may still be starting) and verifies connectivity.
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var conn *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		conn, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
		if err == nil {
			break
		}
		log.Warn("retrying DB connection", zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := conn.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	log.Info("database connected",
		zap.String("host", cfg.Host), zap.Int("port", cfg.Port), zap.String("dbname", cfg.DBName))
	return conn, nil
}

// Migrate brings the schema up to date: SQL migrations via golang-migrate
// when sqlMigrations is set, AutoMigrate otherwise (dev convenience).
func Migrate(conn *gorm.DB, cfg config.DatabaseConfig, sqlMigrations bool) error {
	if sqlMigrations {
		m, err := migrate.New("file://migrations", cfg.URL())
		if err != nil {
			return fmt.Errorf("open migrations: %w", err)
		}
		if err = m.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		if err := AutoMigrate(conn); err != nil {
			return err
		}
	}
	// sanity check: ensure required core tables exist
	for _, table := range []string{"users", "syndics", "immeubles", "proprietaires", "access_tokens"} {
		if !conn.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// AutoMigrate runs gorm schema migration for every model. The composite
// unique index on proprietaires comes from the model tags, matching the SQL
// migrations.
func AutoMigrate(conn *gorm.DB) error {
	modelsToMigrate := []any{
		&models.User{}, &models.Syndic{}, &models.Immeuble{}, &models.Proprietaire{}, &auth.AccessToken{},
	}
	for _, m := range modelsToMigrate {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// Seed creates a demo syndic account when none exists (development only,
// enabled via DB_SEED). Password: "password123".
func Seed(conn *gorm.DB) error {
	var count int64
	if err := conn.Model(&models.User{}).Where("role = ?", models.RoleSyndic).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return conn.Transaction(func(tx *gorm.DB) error {
		user := models.User{
			Name:     "Syndic Démo",
			Email:    "syndic@example.test",
			Password: string(hash),
			Role:     models.RoleSyndic,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Syndic{UserID: user.ID, Phone: "0600000000"}).Error
	})
}
