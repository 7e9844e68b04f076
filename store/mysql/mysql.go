package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	// mysql driver, registered for database/sql
	_ "github.com/go-sql-driver/mysql"
)

const (
	getCheckpointQuery = `SELECT sequence_number FROM %TABLE% WHERE checkpoint_key = ?`

	upsertCheckpointQuery = `INSERT INTO %TABLE% (checkpoint_key, sequence_number)
							 VALUES (?, ?)
							 ON DUPLICATE KEY UPDATE sequence_number = VALUES(sequence_number)`
)

// Option is used to override defaults when creating a new Checkpoint
type Option func(*Checkpoint)

// WithDB overrides the default database handle
func WithDB(db *sql.DB) Option {
	return func(c *Checkpoint) {
		c.db = db
	}
}

// New returns a checkpoint store backed by a MySQL table. The table must have
// (checkpoint_key, sequence_number) columns with checkpoint_key as primary key.
func New(appName, tableName, dsn string, opts ...Option) (*Checkpoint, error) {
	if appName == "" {
		return nil, errors.New("must provide app name")
	}
	if tableName == "" {
		return nil, errors.New("must provide table name")
	}

	c := &Checkpoint{
		appName:   appName,
		tableName: tableName,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.db == nil {
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "open mysql connection")
		}
		if err := db.Ping(); err != nil {
			return nil, errors.Wrap(err, "ping mysql")
		}
		c.db = db
	}

	return c, nil
}

// Checkpoint stores and retrieves per-shard consume positions in MySQL
type Checkpoint struct {
	appName   string
	tableName string
	db        *sql.DB
}

// GetCheckpoint fetches the checkpoint for a particular Shard.
func (c *Checkpoint) GetCheckpoint(ctx context.Context, streamName, shardID string) (string, error) {
	var sequenceNumber string
	err := c.db.QueryRowContext(ctx, c.query(getCheckpointQuery), c.key(streamName, shardID)).Scan(&sequenceNumber)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "get checkpoint")
	}
	return sequenceNumber, nil
}

// SetCheckpoint stores a checkpoint for a shard (e.g. sequence number of last record processed by application).
// Upon failover, record processing is resumed from this point.
func (c *Checkpoint) SetCheckpoint(ctx context.Context, streamName, shardID, sequenceNumber string) error {
	if sequenceNumber == "" {
		return errors.New("sequence number should not be empty")
	}

	_, err := c.db.ExecContext(ctx, c.query(upsertCheckpointQuery), c.key(streamName, shardID), sequenceNumber)
	return errors.Wrap(err, "set checkpoint")
}

// Shutdown closes the underlying database handle.
func (c *Checkpoint) Shutdown() error {
	return c.db.Close()
}

// key generates a unique key for storage of a Checkpoint.
func (c *Checkpoint) key(streamName, shardID string) string {
	return c.appName + ":checkpoint:" + streamName + ":" + shardID
}

func (c *Checkpoint) query(q string) string {
	return strings.ReplaceAll(q, "%TABLE%", c.tableName)
}
