package storage

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
)

// sqlCipherConnector implements driver.Connector so every new connection
// (not just the first) gets the encryption key and pragma sequence
// applied: cipher version, KDF iterations, page size, WAL mode, busy
// timeout, and foreign keys, in that order — the pragma sequence's order
// matters for SQLCipher, since the key pragma must run before any other
// statement touches the database file.
type sqlCipherConnector struct {
	driver *sqlite3.SQLiteDriver
	dsn    string
	cfg    PoolConfig
}

func newSQLCipherConnector(cfg PoolConfig) (driver.Connector, error) {
	d := &sqlite3.SQLiteDriver{}
	return &sqlCipherConnector{driver: d, dsn: cfg.Path, cfg: cfg}, nil
}

func (c *sqlCipherConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.driver.Open(c.dsn)
	if err != nil {
		return nil, classifyConnError(err)
	}

	execer, ok := conn.(driver.ExecerContext)
	if !ok {
		conn.Close()
		return nil, apperrors.DatabaseError("sqlcipher_connect", fmt.Errorf("sqlite3 connection does not support ExecerContext"))
	}

	for _, stmt := range pragmaSequence(c.cfg) {
		if _, err := execer.ExecContext(ctx, stmt, nil); err != nil {
			conn.Close()
			return nil, classifyConnError(err)
		}
	}

	return conn, nil
}

func (c *sqlCipherConnector) Driver() driver.Driver { return c.driver }

// pragmaSequence returns the exact statement order required to open and
// configure an encrypted connection: key first, then cipher tuning, then
// general connection pragmas.
func pragmaSequence(cfg PoolConfig) []string {
	return []string{
		fmt.Sprintf("PRAGMA key = '%s';", cfg.EncryptionKey),
		fmt.Sprintf("PRAGMA cipher_page_size = %d;", cfg.CipherPageSize),
		fmt.Sprintf("PRAGMA kdf_iter = %d;", cfg.KDFIterations),
		"PRAGMA cipher_hmac_algorithm = HMAC_SHA512;",
		"PRAGMA cipher_kdf_algorithm = PBKDF2_HMAC_SHA512;",
		"PRAGMA journal_mode = WAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", cfg.BusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON;",
	}
}

var wrongKeySignatures = []string{
	"file is not a database",
	"file is encrypted",
	"database disk image is malformed",
	"notadb",
}

func classifyConnError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range wrongKeySignatures {
		if strings.Contains(msg, sig) {
			return apperrors.DatabaseError("sqlcipher_connect", err).
				WithField("reason", "wrong_key_or_not_encrypted")
		}
	}
	return apperrors.DatabaseError("sqlcipher_connect", err)
}
