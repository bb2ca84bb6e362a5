package database

import (
	"fmt"

	"github.com/suteetoe/geoprofile/internal/model"
	"github.com/suteetoe/geoprofile/pkg/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the database connection with configuration
func InitDB(dbConfig *config.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  dbConfig.GetDSN(),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger:                 logger.Default.LogMode(dbConfig.LogLevel),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Error("Failed to get database object", zap.Error(err))
		return nil, err
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	log.Info("Database connected successfully", zap.String("host", dbConfig.Host), zap.String("db", dbConfig.DBName))
	return db, nil
}

// Migrate enables PostGIS, creates or updates the schema and seeds the default permissions
func Migrate(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS postgis").Error; err != nil {
		return fmt.Errorf("failed to enable postgis: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Permission{},
		&model.Group{},
		&model.User{},
		&model.AreaOfInterest{},
		&model.WorkDistance{},
		&model.Document{},
	); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Replaced by the case-insensitive idx_users_email_lower
	if db.Migrator().HasIndex(&model.User{}, "idx_users_email") {
		if err := db.Migrator().DropIndex(&model.User{}, "idx_users_email"); err != nil {
			return fmt.Errorf("failed to drop case-sensitive email index: %w", err)
		}
	}

	for _, perm := range model.DefaultPermissions() {
		p := perm
		err := db.Where(model.Permission{AppLabel: p.AppLabel, Codename: p.Codename}).
			Attrs(model.Permission{Name: p.Name}).
			FirstOrCreate(&p).Error
		if err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", p.FullName(), err)
		}
	}

	return nil
}
