package persistence

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jinzhu/gorm/dialects/mysql"
)

type DatabaseConfig struct {
	DriverType string `mapstructure:"driver" validate:"required,oneof=mysql"`
	DriverArgs string `mapstructure:"args" validate:"required"`

	MaxOpenConns    int           `mapstructure:"maxOpenConns" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime" validate:"min=0"`
	ConnectRetries  int           `mapstructure:"connectRetries" validate:"min=0"`
}

// PrepareMysqlDatabase creates the database named in the DSN when it does not exist yet.
func PrepareMysqlDatabase(dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fmt.Errorf("invalid mysql dsn: %w", err)
	}
	name := cfg.DBName
	if name == "" {
		return fmt.Errorf("mysql dsn has no database name")
	}
	cfg.DBName = ""

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + name + "` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci")
	return err
}
