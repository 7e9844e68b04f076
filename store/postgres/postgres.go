package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	// postgres driver, registered for database/sql
	_ "github.com/lib/pq"
)

const (
	getCheckpointQuery = `SELECT sequence_number FROM %TABLE% WHERE namespace = $1 AND shard_id = $2`

	upsertCheckpointQuery = `INSERT INTO %TABLE% (namespace, shard_id, sequence_number)
							 VALUES ($1, $2, $3)
							 ON CONFLICT (namespace, shard_id)
							 DO UPDATE SET sequence_number = EXCLUDED.sequence_number`
)

// Option is used to override defaults when creating a new Checkpoint
type Option func(*Checkpoint)

// WithDB overrides the default database handle, e.g. to share a pool with the
// rest of the application
func WithDB(db *sql.DB) Option {
	return func(c *Checkpoint) {
		c.db = db
	}
}

// New returns a checkpoint store backed by a Postgres table. The table must
// have (namespace, shard_id, sequence_number) columns with a unique constraint
// on (namespace, shard_id).
func New(appName, tableName, connStr string, opts ...Option) (*Checkpoint, error) {
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
		db, err := sql.Open("postgres", connStr)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres connection")
		}
		if err := db.Ping(); err != nil {
			return nil, errors.Wrap(err, "ping postgres")
		}
		c.db = db
	}

	return c, nil
}

// Checkpoint stores and retrieves per-shard consume positions in Postgres
type Checkpoint struct {
	appName   string
	tableName string
	db        *sql.DB
}

// GetCheckpoint fetches the checkpoint for a particular Shard.
func (c *Checkpoint) GetCheckpoint(ctx context.Context, streamName, shardID string) (string, error) {
	namespace := c.appName + "-" + streamName

	var sequenceNumber string
	err := c.db.QueryRowContext(ctx, c.query(getCheckpointQuery), namespace, shardID).Scan(&sequenceNumber)
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

	namespace := c.appName + "-" + streamName
	_, err := c.db.ExecContext(ctx, c.query(upsertCheckpointQuery), namespace, shardID, sequenceNumber)
	return errors.Wrap(err, "set checkpoint")
}

// Shutdown closes the underlying database handle.
func (c *Checkpoint) Shutdown() error {
	return c.db.Close()
}

// query substitutes the configured table name; table names cannot be bound
// as placeholders
func (c *Checkpoint) query(q string) string {
	return strings.ReplaceAll(q, "%TABLE%", c.tableName)
}
