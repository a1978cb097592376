// Package journal keeps a durable, append-mostly record of dispatched
// actions and cycle events in sqlite, and fans cycle events out to live
// subscribers (the monitoring stream). The in-memory world state stays
// authoritative; journal writes are best-effort and never fail a cycle.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/atimics/matrixbot-sub000/internal/world"
)

type Journal struct {
	db *sql.DB

	mu   sync.RWMutex
	subs map[string]*subscriber
}

type subscriber struct {
	kinds map[string]struct{}
	ch    chan Event
}

// Event is one cycle occurrence: a state transition, a dropped duplicate, a
// decision, an executed action.
type Event struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Subject   string         `json:"subject,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Journal{db: db, subs: map[string]*subscriber{}}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func migrate(db *sql.DB) error {
	statements := strings.Split(schemaSQL, ";")
	for _, raw := range statements {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w (statement=%q)", err, stmt)
		}
	}
	return nil
}

// AppendAction persists a dispatched action. The row id is the action id, so
// a later async confirmation can update it in place.
func (j *Journal) AppendAction(ctx context.Context, act world.Action) error {
	paramsJSON, err := encodeJSON(act.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	resultJSON, err := encodeJSON(act.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO actions (id, type, parameters, result, target, updatable, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, act.ID, act.Type, paramsJSON, resultJSON, nullString(act.Target), boolInt(act.Updatable),
		act.Timestamp.Format(time.RFC3339Nano), act.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// UpdateAction rewrites the stored result for an existing action row.
func (j *Journal) UpdateAction(ctx context.Context, actionID string, result map[string]any) error {
	resultJSON, err := encodeJSON(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	res, err := j.db.ExecContext(ctx, `UPDATE actions SET result = ?, updated_at = ? WHERE id = ?`,
		resultJSON, time.Now().UTC().Format(time.RFC3339Nano), actionID)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("action %s not found", actionID)
	}
	return nil
}

// ListActions returns the newest actions first.
func (j *Journal) ListActions(ctx context.Context, limit int) ([]world.Action, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, type, parameters, result, target, updatable, created_at, updated_at
		FROM actions ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []world.Action
	for rows.Next() {
		var act world.Action
		var paramsStr, resultStr, target sql.NullString
		var updatable int
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&act.ID, &act.Type, &paramsStr, &resultStr, &target, &updatable, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		act.Parameters = decodeJSONMap(paramsStr.String)
		act.Result = decodeJSONMap(resultStr.String)
		act.Target = target.String
		act.Updatable = updatable != 0
		act.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		act.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
		out = append(out, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return out, nil
}

// AppendEvent persists a cycle event and broadcasts it to subscribers.
func (j *Journal) AppendEvent(ctx context.Context, kind, subject, body string, data map[string]any) (Event, error) {
	if strings.TrimSpace(kind) == "" {
		return Event{}, fmt.Errorf("event kind is required")
	}
	dataJSON, err := encodeJSON(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode data: %w", err)
	}
	evt := Event{
		ID:        ulid.Make().String(),
		Kind:      kind,
		Subject:   subject,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO events (id, kind, subject, body, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, evt.ID, evt.Kind, nullString(evt.Subject), nullString(evt.Body), dataJSON,
		evt.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}

	j.broadcast(evt)
	return evt, nil
}

// ListEvents returns the newest events first, optionally filtered by kind.
func (j *Journal) ListEvents(ctx context.Context, kind string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, kind, subject, body, data, created_at FROM events`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		var subject, body, dataStr sql.NullString
		var createdAtStr string
		if err := rows.Scan(&evt.ID, &evt.Kind, &subject, &body, &dataStr, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Subject = subject.String
		evt.Body = body.String
		evt.Data = decodeJSONMap(dataStr.String)
		evt.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Subscribe delivers live events of the given kinds (all kinds when empty)
// until ctx is done. Slow subscribers drop events rather than blocking the
// cycle.
func (j *Journal) Subscribe(ctx context.Context, kinds []string) <-chan Event {
	sub := &subscriber{kinds: map[string]struct{}{}, ch: make(chan Event, 64)}
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			sub.kinds[k] = struct{}{}
		}
	}

	id := ulid.Make().String()
	j.mu.Lock()
	j.subs[id] = sub
	j.mu.Unlock()

	go func() {
		<-ctx.Done()
		j.mu.Lock()
		delete(j.subs, id)
		j.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch
}

func (j *Journal) broadcast(evt Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, sub := range j.subs {
		if len(sub.kinds) > 0 {
			if _, want := sub.kinds[evt.Kind]; !want {
				continue
			}
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

func encodeJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSONMap(s string) map[string]any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
