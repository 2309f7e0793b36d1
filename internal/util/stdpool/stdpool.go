// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package stdpool creates standardized database connection pools for
// the extractor/sinker families, retrying the initial connection
// while the target database is still starting up.
package stdpool

import (
	"database/sql"
	sqldriver "database/sql/driver"
	"time"

	"github.com/cockroachdb/rdb-replicate/internal/stopper"
	_ "github.com/go-sql-driver/mysql" // register driver
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// OpenMySQL opens a *sql.DB against dsn, retrying while the server is
// still starting up, and registers a cleanup goroutine on sctx that
// closes the pool when the context stops.
func OpenMySQL(sctx *stopper.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	sctx.Go(func() error {
		<-sctx.Stopping()
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("could not close mysql connection pool")
		}
		return nil
	})

ping:
	if err := db.PingContext(sctx); err != nil {
		if isStartupError(err) {
			log.WithError(err).Info("waiting for mysql to become ready")
			select {
			case <-sctx.Done():
				return nil, sctx.Err()
			case <-time.After(5 * time.Second):
				goto ping
			}
		}
		return nil, errors.Wrap(err, "could not ping mysql")
	}

	var version string
	if err := db.QueryRowContext(sctx, "SELECT VERSION()").Scan(&version); err != nil {
		return nil, errors.Wrap(err, "could not query mysql version")
	}
	log.Infof("connected to mysql %s", version)
	return db, nil
}

// OpenPostgres opens a *pgxpool.Pool against dsn, retrying while the
// server is still starting up.
func OpenPostgres(sctx *stopper.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parsing postgres dsn")
	}

	var pool *pgxpool.Pool
ping:
	pool, err = pgxpool.NewWithConfig(sctx, poolCfg)
	if err == nil {
		err = pool.Ping(sctx)
	}
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		if isStartupError(err) {
			log.WithError(err).Info("waiting for postgres to become ready")
			select {
			case <-sctx.Done():
				return nil, sctx.Err()
			case <-time.After(5 * time.Second):
				goto ping
			}
		}
		return nil, errors.Wrap(err, "could not connect to postgres")
	}

	sctx.Go(func() error {
		<-sctx.Stopping()
		pool.Close()
		return nil
	})

	var version string
	if err := pool.QueryRow(sctx, "SHOW server_version").Scan(&version); err != nil {
		return nil, errors.Wrap(err, "could not query postgres version")
	}
	log.Infof("connected to postgres %s", version)
	return pool, nil
}

func isStartupError(err error) bool {
	return errors.Is(err, sqldriver.ErrBadConn)
}
