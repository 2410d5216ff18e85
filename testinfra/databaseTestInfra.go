package testinfra

import (
	"os"
	"strings"
	"testing"

	"maintflow/persistence"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const EnvMysqlService = "TEST_MYSQL_SERVICE"

type TestDatabase struct {
	TestDatabaseName string
	DS               *persistence.DataSourceManager
}

// RequireMysql skips the test when no MySQL service is configured.
func RequireMysql(t testing.TB) {
	if os.Getenv(EnvMysqlService) == "" {
		t.Skip(EnvMysqlService + " is not set")
	}
}

// StartMysqlTestDatabase TEST_MYSQL_SERVICE=root:root@(127.0.0.1:3306)
func StartMysqlTestDatabase(baseName string) *TestDatabase {
	mysqlSvc := os.Getenv(EnvMysqlService)
	if mysqlSvc == "" {
		mysqlSvc = "root:root@(127.0.0.1:3306)"
	}
	databaseName := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	dbConfig := &persistence.DatabaseConfig{
		DriverType: "mysql", DriverArgs: mysqlSvc + "/" + databaseName + "?charset=utf8mb4&parseTime=True&loc=UTC&timeout=5s",
	}

	// create database (no conflict)
	if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
		logrus.Fatalf("failed to prepare database %v", err)
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		defer ds.Stop()
		logrus.Fatalf("database connection failed %v", err)
	}

	return &TestDatabase{TestDatabaseName: databaseName, DS: ds}
}

func StopMysqlTestDatabase(testDatabase *TestDatabase) {
	if testDatabase != nil && testDatabase.DS != nil {
		if testDatabase.DS.GormDB() != nil {
			if err := testDatabase.DS.GormDB().Exec("DROP DATABASE " + testDatabase.TestDatabaseName).Error; err != nil {
				logrus.Warn("failed to drop test database: " + testDatabase.TestDatabaseName)
			} else {
				logrus.Info("test database " + testDatabase.TestDatabaseName + " dropped")
			}
		}

		testDatabase.DS.Stop()
	}
}
