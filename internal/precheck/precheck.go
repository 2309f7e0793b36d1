// Package precheck implements the minimal connectivity/version check
// contract spec.md treats as an external collaborator: a single
// Check(ctx) error that cmd/replicator runs once before starting the
// dataplane, grounded on dt-precheck's build_connection +
// check_database_version checks without replicating its full
// checklist (SPEC_FULL.md §4).
package precheck

import (
	"context"
	"database/sql"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Checker probes one database for connectivity and a supported
// version before the dataplane starts.
type Checker interface {
	Check(ctx context.Context) error
}

var mysqlSupportedVersion = regexp.MustCompile(`^8\.`)

// MySQLChecker pings the source/sink and rejects unsupported server
// versions, mirroring dt-precheck's MySqlChecker (MySQL 8.x only).
type MySQLChecker struct {
	DB *sql.DB
}

func (c MySQLChecker) Check(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "precheck: mysql connection failed")
	}

	var version string
	if err := c.DB.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return errors.Wrap(err, "precheck: mysql version query failed")
	}
	if !mysqlSupportedVersion.MatchString(version) {
		return errors.Errorf("precheck: unsupported mysql version %q, require 8.x", version)
	}
	return nil
}

// PostgresChecker pings the source/sink via pgx and confirms the
// server responds to a version query; ape-dts's PgChecker does not
// gate on a specific major version the way MySqlChecker does, so
// neither does this.
type PostgresChecker struct {
	Pool *pgxpool.Pool
}

func (c PostgresChecker) Check(ctx context.Context) error {
	if err := c.Pool.Ping(ctx); err != nil {
		return errors.Wrap(err, "precheck: postgres connection failed")
	}

	var version string
	if err := c.Pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return errors.Wrap(err, "precheck: postgres version query failed")
	}
	return nil
}

// All runs every checker in order, stopping at the first failure so
// the operator sees the first real problem rather than a pile of
// downstream connection errors.
func All(ctx context.Context, checkers ...Checker) error {
	for _, c := range checkers {
		if err := c.Check(ctx); err != nil {
			return err
		}
	}
	return nil
}
