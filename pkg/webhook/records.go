package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// recordSchemaJSON is the shape the NLU backend posts to the database hook.
const recordSchemaJSON = `{
	"type": "object",
	"required": ["result"],
	"properties": {
		"sessionId": {"type": "string"},
		"timestamp": {"type": "string"},
		"result": {
			"type": "object",
			"properties": {
				"action": {"type": "string"},
				"resolvedQuery": {"type": "string"},
				"fulfillment": {
					"type": "object",
					"properties": {
						"speech": {"type": "string"}
					}
				}
			}
		}
	}
}`

var recordSchema = mustCompileRecordSchema()

func mustCompileRecordSchema() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(recordSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid record schema: %v", err))
	}
	return schema
}

// ValidateRecord checks a raw database-hook delivery against the expected
// shape. Validation is independent of persistence: deployments without a
// record store still reject malformed deliveries.
func ValidateRecord(raw json.RawMessage) error {
	result, err := recordSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("record is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("record failed validation: %s", strings.Join(problems, "; "))
}

// Record is one stored NLU fulfillment, extracted from a database-hook
// delivery.
type Record struct {
	SessionID string
	Action    string
	Query     string
	Speech    string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// RecordStore persists database-hook deliveries to SQLite.
type RecordStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewRecordStore prepares the records table on an open database handle. The
// handle is shared with the session store and stays owned by the caller.
func NewRecordStore(db *sql.DB, logger zerolog.Logger) (*RecordStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}

	const create = `
	CREATE TABLE IF NOT EXISTS nlu_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL DEFAULT '',
		query TEXT NOT NULL DEFAULT '',
		speech TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_nlu_records_session ON nlu_records(session_id);
	`
	if _, err := db.Exec(create); err != nil {
		return nil, fmt.Errorf("failed to create records table: %w", err)
	}

	return &RecordStore{
		db:     db,
		logger: logger.With().Str("component", "records").Logger(),
	}, nil
}

// Extract builds a Record from a validated delivery.
func Extract(raw json.RawMessage) Record {
	var delivery struct {
		SessionID string `json:"sessionId"`
		Result    struct {
			Action        string `json:"action"`
			ResolvedQuery string `json:"resolvedQuery"`
			Fulfillment   struct {
				Speech string `json:"speech"`
			} `json:"fulfillment"`
		} `json:"result"`
	}
	_ = json.Unmarshal(raw, &delivery)

	return Record{
		SessionID: delivery.SessionID,
		Action:    delivery.Result.Action,
		Query:     delivery.Result.ResolvedQuery,
		Speech:    delivery.Result.Fulfillment.Speech,
		Payload:   raw,
		CreatedAt: time.Now(),
	}
}

// Save persists one record.
func (s *RecordStore) Save(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nlu_records (session_id, action, query, speech, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Action, rec.Query, rec.Speech, string(rec.Payload), rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *RecordStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nlu_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}
