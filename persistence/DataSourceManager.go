package persistence

import (
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	otgorm "github.com/smacker/opentracing-gorm"
)

var (
	connectFunc = connect

	// ConnectRetryInterval is the first pause between connection attempts, later pauses grow exponentially.
	ConnectRetryInterval = time.Second
)

// DataSourceManager owns the shared gorm connection. Every statement issued through it is traced
// when the gorm scope carries a span, see otgorm.SetSpanToGorm.
type DataSourceManager struct {
	gormDB *gorm.DB

	DatabaseConfig *DatabaseConfig
}

// Start connects, retrying up to ConnectRetries times while the database is not reachable yet.
func (m *DataSourceManager) Start() error {
	var db *gorm.DB
	attempt := 0
	operation := func() error {
		attempt++
		conn, err := connectFunc(m.DatabaseConfig)
		if err != nil {
			logrus.WithError(err).WithField("attempt", attempt).Warn("database connection failed")
			return err
		}
		db = conn
		return nil
	}
	if err := backoff.Retry(operation, m.connectBackOff()); err != nil {
		return err
	}
	otgorm.AddGormCallbacks(db)
	m.gormDB = db
	if os.Getenv("GIN_MODE") != "release" {
		m.gormDB.LogMode(true)
	}
	logrus.WithFields(logrus.Fields{"driver": m.DatabaseConfig.DriverType,
		"maxOpenConns": m.DatabaseConfig.MaxOpenConns}).Info("database connected")
	return nil
}

func (m *DataSourceManager) connectBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = ConnectRetryInterval
	bo.MaxInterval = 10 * ConnectRetryInterval
	bo.MaxElapsedTime = 0
	return backoff.WithMaxRetries(bo, uint64(m.DatabaseConfig.ConnectRetries))
}

func (m *DataSourceManager) Stop() {
	if m.gormDB != nil {
		if err := m.gormDB.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close database")
		}
		m.gormDB = nil
	}
}

// GormDB returns a fresh session, nil before Start or after Stop.
func (m *DataSourceManager) GormDB() *gorm.DB {
	if m.gormDB != nil {
		return m.gormDB.New()
	}
	return nil
}

func connect(config *DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(config.DriverType, config.DriverArgs)
	if err != nil {
		return nil, err
	}
	pool := db.DB()
	if config.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if err := pool.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
