// Package store persists experience entries in PostgreSQL with pgvector and
// serves nearest-neighbor retrieval over their embeddings.
//
// The store is an optional dependency of the retrieval core: when it is
// unreachable every operation fails with ErrUnavailable and callers fall
// back to heuristic matching. Connections come from a bounded pgxpool
// (default 1..5); callers block FIFO-fair on pool exhaustion up to the
// configured acquire timeout and then fail instead of waiting forever.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/fixlore/fixlore/internal/experience"
)

// Defaults mirror the pool bounds the system has always run with.
const (
	DefaultMinConns       = 1
	DefaultMaxConns       = 5
	DefaultAcquireTimeout = 10 * time.Second
)

// TelemetryField names a telemetry counter eligible for batched increments.
type TelemetryField string

const (
	FieldHits      TelemetryField = "hits"
	FieldSuccesses TelemetryField = "successes"
	FieldFailures  TelemetryField = "failures"
)

func (f TelemetryField) valid() bool {
	switch f {
	case FieldHits, FieldSuccesses, FieldFailures:
		return true
	}
	return false
}

// Candidate is one search result: the stored entry plus its cosine
// similarity to the query embedding.
type Candidate struct {
	Entry      experience.Entry
	Similarity float64
}

// Config configures a Store.
type Config struct {
	// URL is the postgres:// connection string.
	URL string

	// Dimension is the expected embedding length. Must match the vector
	// column declared by the schema migrations.
	Dimension int

	// MinConns and MaxConns bound the connection pool. Zero values take
	// the package defaults.
	MinConns int32
	MaxConns int32

	// AcquireTimeout bounds how long a caller may block waiting for a
	// pooled connection before the operation fails with ErrUnavailable.
	AcquireTimeout time.Duration
}

// Store is the persistent, indexed repository of experience entries.
// Safe for concurrent use by multiple sessions.
type Store struct {
	pool           *pgxpool.Pool
	dimension      int
	acquireTimeout time.Duration
	logger         *slog.Logger
}

// New connects to the database and verifies reachability. The caller owns
// the returned Store and must Close it.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing store connection string: %w", err)
	}

	poolCfg.MinConns = cfg.MinConns
	if poolCfg.MinConns <= 0 {
		poolCfg.MinConns = DefaultMinConns
	}
	poolCfg.MaxConns = cfg.MaxConns
	if poolCfg.MaxConns <= 0 {
		poolCfg.MaxConns = DefaultMaxConns
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: creating pool: %v", ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}

	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	return &Store{
		pool:           pool,
		dimension:      cfg.Dimension,
		acquireTimeout: timeout,
		logger:         logger,
	}, nil
}

// Dimension returns the configured embedding dimension.
func (s *Store) Dimension() int {
	return s.dimension
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// acquire checks a connection out of the bounded pool, converting an
// exhausted-pool wait into ErrUnavailable after the acquire timeout.
func (s *Store) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	conn, err := s.pool.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: pool acquire timeout after %s", ErrUnavailable, s.acquireTimeout)
		}
		return nil, fmt.Errorf("%w: acquire: %v", ErrUnavailable, err)
	}
	return conn, nil
}

// Upsert inserts or replaces the entry and its embedding, keyed by id.
// Content and embedding change together or not at all; telemetry counters
// are left untouched on replace so they never move backwards.
func (s *Store) Upsert(ctx context.Context, e experience.Entry, embedding []float32) error {
	if len(embedding) != s.dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.dimension, len(embedding))
	}

	contextJSON, signalsJSON, adviceJSON, atomsJSON, err := marshalContent(&e)
	if err != nil {
		return err
	}

	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO entries (id, context, signals, advice_nl, atoms, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			context = EXCLUDED.context,
			signals = EXCLUDED.signals,
			advice_nl = EXCLUDED.advice_nl,
			atoms = EXCLUDED.atoms,
			embedding = EXCLUDED.embedding`,
		e.ID, contextJSON, signalsJSON, adviceJSON, atomsJSON,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("upserting entry %q: %w", e.ID, err)
	}

	s.logger.Debug("upserted entry", "id", e.ID)
	return nil
}

// Search returns up to k entries ordered by descending cosine similarity to
// the query embedding, after applying the structural context predicates
// (exact language match, tool-set intersection, version-prefix match) and
// dropping results below minSimilarity.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, qc experience.QueryContext, k int, minSimilarity float64) ([]Candidate, error) {
	if len(queryEmbedding) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.dimension, len(queryEmbedding))
	}
	if k <= 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(queryEmbedding)
	query, args := buildSearchQuery(vec, qc, k, minSimilarity)

	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching entries: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var (
			c           Candidate
			contextRaw  []byte
			signalsRaw  []byte
			adviceRaw   []byte
			atomsRaw    []byte
			telemetryRw []byte
		)
		if err := rows.Scan(&c.Entry.ID, &contextRaw, &signalsRaw, &adviceRaw, &atomsRaw, &telemetryRw, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if err := unmarshalContent(&c.Entry, contextRaw, signalsRaw, adviceRaw, atomsRaw, telemetryRw); err != nil {
			s.logger.Warn("skipping undecodable entry", "id", c.Entry.ID, "error", err)
			continue
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}

	return candidates, nil
}

// buildSearchQuery assembles the filtered similarity query. The query
// embedding is bound once and referenced positionally; structural filters
// are appended only when the context constrains them.
func buildSearchQuery(vec pgvector.Vector, qc experience.QueryContext, k int, minSimilarity float64) (string, []any) {
	args := []any{vec, minSimilarity}
	var filters []string

	if qc.Lang != "" {
		args = append(args, qc.Lang)
		filters = append(filters, fmt.Sprintf("context->>'lang' = $%d", len(args)))
	}

	if len(qc.Tools) > 0 {
		var conds []string
		for _, tool := range qc.Tools {
			args = append(args, tool)
			conds = append(conds, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM jsonb_array_elements_text(context->'tools') AS t WHERE t = $%d)", len(args)))
		}
		filters = append(filters, "("+strings.Join(conds, " OR ")+")")
	}

	if qc.Version != "" {
		args = append(args, qc.Version+"%")
		filters = append(filters, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(context->'python') AS v WHERE v LIKE $%d)", len(args)))
	}

	where := "WHERE 1 - (embedding <=> $1) >= $2"
	if len(filters) > 0 {
		where += " AND " + strings.Join(filters, " AND ")
	}

	args = append(args, k)
	query := fmt.Sprintf(`
		SELECT id, context, signals, advice_nl, atoms, telemetry,
		       1 - (embedding <=> $1) AS similarity
		FROM entries
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d`, where, len(args))

	return query, args
}

// GetByID fetches a single entry. Returns ErrNotFound for unknown ids.
func (s *Store) GetByID(ctx context.Context, id string) (experience.Entry, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return experience.Entry{}, err
	}
	defer conn.Release()

	var (
		e           experience.Entry
		contextRaw  []byte
		signalsRaw  []byte
		adviceRaw   []byte
		atomsRaw    []byte
		telemetryRw []byte
	)
	err = conn.QueryRow(ctx, `
		SELECT id, context, signals, advice_nl, atoms, telemetry
		FROM entries
		WHERE id = $1`, id,
	).Scan(&e.ID, &contextRaw, &signalsRaw, &adviceRaw, &atomsRaw, &telemetryRw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return experience.Entry{}, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return experience.Entry{}, fmt.Errorf("fetching entry %q: %w", id, err)
	}

	if err := unmarshalContent(&e, contextRaw, signalsRaw, adviceRaw, atomsRaw, telemetryRw); err != nil {
		return experience.Entry{}, fmt.Errorf("decoding entry %q: %w", id, err)
	}
	return e, nil
}

// IncrementTelemetry applies a single atomic +1 to the given counter for
// every listed id in one statement. Unknown ids are silently ignored; the
// delta is applied at the storage layer so concurrent increments on
// overlapping id sets never lose updates.
func (s *Store) IncrementTelemetry(ctx context.Context, ids []string, field TelemetryField) error {
	if len(ids) == 0 {
		return nil
	}
	if !field.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTelemetryField, field)
	}

	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	// field is validated against the closed TelemetryField set above, so
	// embedding it in the jsonb path is safe.
	query := fmt.Sprintf(`
		UPDATE entries
		SET telemetry = jsonb_set(
			COALESCE(telemetry, '{}'::jsonb),
			'{%s}',
			(COALESCE(telemetry->>'%s', '0')::int + 1)::text::jsonb
		)
		WHERE id = ANY($1)`, field, field)

	tag, err := conn.Exec(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("incrementing %s for %d ids: %w", field, len(ids), err)
	}

	s.logger.Debug("telemetry incremented", "field", field, "requested", len(ids), "updated", tag.RowsAffected())
	return nil
}

func marshalContent(e *experience.Entry) (contextJSON, signalsJSON, adviceJSON, atomsJSON []byte, err error) {
	if contextJSON, err = json.Marshal(e.Context); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling context: %w", err)
	}
	if signalsJSON, err = json.Marshal(e.Signals); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling signals: %w", err)
	}
	advice := e.Advice
	if advice == nil {
		advice = []string{}
	}
	if adviceJSON, err = json.Marshal(advice); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling advice: %w", err)
	}
	atoms := e.Atoms
	if atoms == nil {
		atoms = []experience.Atom{}
	}
	if atomsJSON, err = json.Marshal(atoms); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling atoms: %w", err)
	}
	return contextJSON, signalsJSON, adviceJSON, atomsJSON, nil
}

func unmarshalContent(e *experience.Entry, contextRaw, signalsRaw, adviceRaw, atomsRaw, telemetryRaw []byte) error {
	if len(contextRaw) > 0 {
		if err := json.Unmarshal(contextRaw, &e.Context); err != nil {
			return fmt.Errorf("context: %w", err)
		}
	}
	if len(signalsRaw) > 0 {
		if err := json.Unmarshal(signalsRaw, &e.Signals); err != nil {
			return fmt.Errorf("signals: %w", err)
		}
	}
	if len(adviceRaw) > 0 {
		if err := json.Unmarshal(adviceRaw, &e.Advice); err != nil {
			return fmt.Errorf("advice: %w", err)
		}
	}
	if len(atomsRaw) > 0 {
		if err := json.Unmarshal(atomsRaw, &e.Atoms); err != nil {
			return fmt.Errorf("atoms: %w", err)
		}
	}
	if len(telemetryRaw) > 0 {
		if err := json.Unmarshal(telemetryRaw, &e.Telemetry); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	return nil
}
