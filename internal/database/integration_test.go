//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("feedbox"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := Open(s.ctx, Postgres, connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.conn.ExecContext(s.ctx, "DELETE FROM article")
	_, _ = s.db.conn.ExecContext(s.ctx, "DELETE FROM feed")
	_, _ = s.db.conn.ExecContext(s.ctx, "DELETE FROM folder WHERE id <> 0")
}

func (s *PostgresIntegrationSuite) TestStore() {
	for _, tt := range storeTests {
		s.SetupTest()
		s.Run(tt.name, func() {
			tt.fn(s.T(), s.db)
		})
	}
}

func (s *PostgresIntegrationSuite) TestMigrateIsIdempotent() {
	s.Require().NoError(s.db.migrate(context.Background()))
}

func (s *PostgresIntegrationSuite) TestMigrateReleasesConnection() {
	s.Require().NoError(s.db.migrate(s.ctx))
	s.Zero(s.db.conn.Stats().InUse)
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}
