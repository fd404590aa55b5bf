package trace

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const maxCalls = 200

// Store persists trace data to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to the trace database at connStr and applies pending migrations.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("trace open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateCall inserts a new call and prunes the oldest beyond the retention cap.
func (s *Store) CreateCall(id, callSID, streamSID string) error {
	_, err := s.db.Exec(
		`INSERT INTO calls (id, call_sid, stream_sid, started_at) VALUES ($1, $2, $3, $4)`,
		id, callSID, streamSID, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`DELETE FROM calls WHERE id NOT IN (SELECT id FROM calls ORDER BY started_at DESC LIMIT $1)`,
		maxCalls,
	)
	return err
}

// EndCall sets the ended_at timestamp.
func (s *Store) EndCall(id string) error {
	_, err := s.db.Exec(`UPDATE calls SET ended_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	return err
}

// CreateInteraction inserts a new interaction in the running state.
func (s *Store) CreateInteraction(id, callID string, sequence int) error {
	_, err := s.db.Exec(
		`INSERT INTO interactions (id, call_id, sequence, started_at, status) VALUES ($1, $2, $3, $4, 'running')`,
		id, callID, sequence, time.Now().UTC(),
	)
	return err
}

// EndInteraction sets the interaction's final fields.
func (s *Store) EndInteraction(id string, durationMs float64, userText, replyText, status string) error {
	_, err := s.db.Exec(
		`UPDATE interactions SET duration_ms = $1, user_text = $2, reply_text = $3, status = $4 WHERE id = $5`,
		durationMs, userText, replyText, status, id,
	)
	return err
}

// CreateSpan inserts a span.
func (s *Store) CreateSpan(sp Span) error {
	_, err := s.db.Exec(
		`INSERT INTO spans (id, interaction_id, name, started_at, duration_ms, input, output, status, error_msg)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sp.ID, sp.InteractionID, sp.Name, sp.StartedAt.UTC(),
		sp.DurationMs, sp.Input, sp.Output, sp.Status, sp.Error,
	)
	return err
}

// ListCalls returns calls ordered newest first, with interaction counts.
func (s *Store) ListCalls(limit, offset int) ([]Call, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM calls`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT c.id, c.call_sid, c.stream_sid, c.started_at, c.ended_at, COUNT(i.id) AS interaction_count
		FROM calls c
		LEFT JOIN interactions i ON i.call_id = c.id
		GROUP BY c.id
		ORDER BY c.started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var c Call
		var endedAt sql.NullTime
		if err = rows.Scan(&c.ID, &c.CallSID, &c.StreamSID, &c.StartedAt, &endedAt, &c.InteractionCount); err != nil {
			return nil, 0, err
		}
		if endedAt.Valid {
			c.EndedAt = &endedAt.Time
		}
		calls = append(calls, c)
	}
	return calls, total, rows.Err()
}

// GetCall returns a single call with its interactions.
func (s *Store) GetCall(id string) (*Call, []Interaction, error) {
	var c Call
	var endedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT id, call_sid, stream_sid, started_at, ended_at FROM calls WHERE id = $1`, id,
	).Scan(&c.ID, &c.CallSID, &c.StreamSID, &c.StartedAt, &endedAt)
	if err != nil {
		return nil, nil, err
	}
	if endedAt.Valid {
		c.EndedAt = &endedAt.Time
	}

	rows, err := s.db.Query(`
		SELECT i.id, i.call_id, i.sequence, i.started_at, COALESCE(i.duration_ms, 0),
		       COALESCE(i.user_text, ''), COALESCE(i.reply_text, ''), i.status,
		       COUNT(sp.id) AS span_count
		FROM interactions i
		LEFT JOIN spans sp ON sp.interaction_id = i.id
		WHERE i.call_id = $1
		GROUP BY i.id
		ORDER BY i.sequence ASC
	`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var interactions []Interaction
	for rows.Next() {
		var it Interaction
		if err = rows.Scan(&it.ID, &it.CallID, &it.Sequence, &it.StartedAt, &it.DurationMs,
			&it.UserText, &it.ReplyText, &it.Status, &it.SpanCount); err != nil {
			return nil, nil, err
		}
		interactions = append(interactions, it)
	}
	return &c, interactions, rows.Err()
}

// GetInteraction returns a single interaction with its spans.
func (s *Store) GetInteraction(callID, interactionID string) (*Interaction, []Span, error) {
	var it Interaction
	err := s.db.QueryRow(
		`SELECT id, call_id, sequence, started_at, COALESCE(duration_ms, 0),
		        COALESCE(user_text, ''), COALESCE(reply_text, ''), status
		 FROM interactions WHERE id = $1 AND call_id = $2`,
		interactionID, callID,
	).Scan(&it.ID, &it.CallID, &it.Sequence, &it.StartedAt, &it.DurationMs, &it.UserText, &it.ReplyText, &it.Status)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, interaction_id, name, started_at, duration_ms,
		        COALESCE(input, ''), COALESCE(output, ''), status, COALESCE(error_msg, '')
		 FROM spans WHERE interaction_id = $1 ORDER BY started_at ASC`,
		interactionID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var spans []Span
	for rows.Next() {
		var sp Span
		if err = rows.Scan(&sp.ID, &sp.InteractionID, &sp.Name, &sp.StartedAt, &sp.DurationMs,
			&sp.Input, &sp.Output, &sp.Status, &sp.Error); err != nil {
			return nil, nil, err
		}
		spans = append(spans, sp)
	}
	return &it, spans, rows.Err()
}
