package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
	"solara.ai/insights-gateway/app/utils/logger"
	"solara.ai/insights-gateway/config/environment_variables"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var SchemaRegistry []interface{}

func RegisterSchemaForAutoMigrate(models ...interface{}) {
	SchemaRegistry = append(SchemaRegistry, models...)
}

var DB *gorm.DB

func gormConfig() *gorm.Config {
	return &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}
}

// NewDB opens the durable store selected by DB_DRIVER and migrates every
// registered schema.
func NewDB() (*gorm.DB, error) {
	env := environment_variables.EnvironmentVariables
	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(env.DB_DRIVER) {
	case DriverSQLite:
		db, err = OpenSQLite(env.DB_SQLITE_PATH)
	case DriverPostgres, "":
		db, err = OpenPostgres(env.DB_POSTGRESQL_WRITE_DSN, env.DB_POSTGRESQL_READ1_DSN)
	default:
		err = fmt.Errorf("unsupported DB_DRIVER %q", env.DB_DRIVER)
	}
	if err != nil {
		logger.GetLogger().
			WithField("error_code", "5c16fb53-d98c-4fc6-8bb4-9abd3c0b9e88").
			Errorf("unable to connect to database: %v", err)
		return nil, err
	}

	if err := NewDBMigrator(db).Migrate(); err != nil {
		logger.GetLogger().
			WithField("error_code", "75333e43-8157-4f0a-8e34-aa34e6e7c285").
			Errorf("failed to migrate schema: %v", err)
		return nil, err
	}

	DB = db
	return DB, nil
}

// OpenPostgres connects the writer and, when readDSN is set, registers it
// as a read replica.
func OpenPostgres(writeDSN string, readDSN string) (*gorm.DB, error) {
	if strings.TrimSpace(writeDSN) == "" {
		return nil, fmt.Errorf("DB_POSTGRESQL_WRITE_DSN is required for the postgres driver")
	}
	db, err := gorm.Open(postgres.Open(writeDSN), gormConfig())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(readDSN) == "" {
		return db, nil
	}
	err = db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: []gorm.Dialector{postgres.Open(readDSN)},
		Policy:   dbresolver.RandomPolicy{},
	}))
	if err != nil {
		logger.GetLogger().
			WithField("error_code", "9fab4b2e-1d70-4a4e-928a-5e81c7ee06de").
			Errorf("unable to set up read replica: %v", err)
		return nil, err
	}
	return db, nil
}

func OpenSQLite(path string) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("DB_SQLITE_PATH is required for the sqlite driver")
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
