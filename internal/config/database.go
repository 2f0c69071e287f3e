package config

import (
	"fmt"
	"time"

	_ "github.com/lib/pq" // database/sql driver used under gorm
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bus_tracker/internal/models"
)

// postGISDDL creates what AutoMigrate cannot express: the generated geography
// column for pings and its GiST index.
var postGISDDL = []string{
	`ALTER TABLE locations ADD COLUMN IF NOT EXISTS geog geography(Point, 4326)
		GENERATED ALWAYS AS (ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)::geography) STORED`,
	`CREATE INDEX IF NOT EXISTS idx_locations_geog ON locations USING GIST (geog)`,
}

// OpenDB connects to PostgreSQL using lib/pq as the driver so unique
// violations surface as *pq.Error.
func OpenDB(cfg DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        cfg.DSN(),
	}), &gorm.Config{
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(log.GetLevel()),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate enables PostGIS, migrates every model and applies the spatial DDL.
func Migrate(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS postgis").Error; err != nil {
		return fmt.Errorf("enable postgis: %w", err)
	}

	err := db.AutoMigrate(
		&models.Operator{},
		&models.Route{},
		&models.Waypoint{},
		&models.Bus{},
		&models.User{},
		&models.RefreshToken{},
		&models.Location{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	for _, stmt := range postGISDDL {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("postgis ddl: %w", err)
		}
	}
	return nil
}

func gormLogLevel(level logrus.Level) gormlogger.LogLevel {
	switch {
	case level >= logrus.DebugLevel:
		return gormlogger.Info
	case level >= logrus.WarnLevel:
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}
