// Package storage persists analysis history: completed runs with their
// blocks and findings, scour sessions with their ordered passes, and
// episodic memory records. Partial results are persisted too; a failed
// later stage never erases what earlier stages produced.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fsgeek/arbiter/internal/block"
	"github.com/fsgeek/arbiter/internal/episode"
	"github.com/fsgeek/arbiter/internal/scour"
	"github.com/fsgeek/arbiter/internal/tensor"

	_ "github.com/mattn/go-sqlite3"
)

// Run is one persisted analysis: the decomposed blocks and the findings
// index produced over them. Index may be nil when the run failed before
// evaluation completed.
type Run struct {
	ID        string
	Source    string
	CreatedAt time.Time
	Blocks    []block.Block
	Index     *tensor.Index
	Score     float64
	Summary   string
}

// ScourSession is one persisted exploration session.
type ScourSession struct {
	ID        string
	Source    string
	Outcome   scour.Outcome
	CreatedAt time.Time
	State     *scour.State
}

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT,
			created_at TIMESTAMP,
			score REAL,
			summary TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS blocks (
			run_id TEXT,
			id TEXT,
			source TEXT,
			tier TEXT,
			category TEXT,
			modality TEXT,
			content TEXT,
			scope JSON,
			priority_markers JSON,
			line_start INTEGER,
			line_end INTEGER,
			PRIMARY KEY (run_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS findings (
			run_id TEXT,
			subject_a TEXT,
			subject_b TEXT,
			rule TEXT,
			category TEXT,
			score REAL,
			severity TEXT,
			confidence TEXT,
			explanation TEXT,
			source_backend TEXT,
			static INTEGER,
			pass INTEGER,
			PRIMARY KEY (run_id, subject_a, subject_b, rule)
		);`,
		`CREATE TABLE IF NOT EXISTS scour_sessions (
			id TEXT PRIMARY KEY,
			source TEXT,
			outcome TEXT,
			created_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS scour_passes (
			session_id TEXT,
			pass INTEGER,
			backend TEXT,
			report JSON,
			PRIMARY KEY (session_id, pass)
		);`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP,
			session TEXT,
			title TEXT,
			anchor JSON,
			body JSON
		);`,
		`CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_run ON blocks(run_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- Analysis runs ---

// SaveRun persists a run with its blocks and findings in one transaction.
// A nil Index persists the run and blocks alone.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, created_at, score, summary)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			created_at=excluded.created_at,
			score=excluded.score,
			summary=excluded.summary
	`, run.ID, run.Source, run.CreatedAt, run.Score, run.Summary)
	if err != nil {
		return err
	}

	blockStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO blocks (run_id, id, source, tier, category, modality, content, scope, priority_markers, line_start, line_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO UPDATE SET
			source=excluded.source,
			tier=excluded.tier,
			category=excluded.category,
			modality=excluded.modality,
			content=excluded.content,
			scope=excluded.scope,
			priority_markers=excluded.priority_markers,
			line_start=excluded.line_start,
			line_end=excluded.line_end
	`)
	if err != nil {
		return err
	}
	defer blockStmt.Close()

	for _, b := range run.Blocks {
		scope, _ := json.Marshal(b.Scope)
		markers, _ := json.Marshal(b.PriorityMarkers)
		_, err = blockStmt.ExecContext(ctx, run.ID, b.ID, b.Source, b.Tier, b.Category,
			b.Modality, b.Text, scope, markers, b.LineStart, b.LineEnd)
		if err != nil {
			return err
		}
	}

	if run.Index != nil {
		findingStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO findings (run_id, subject_a, subject_b, rule, category, score, severity, confidence, explanation, source_backend, static, pass)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, subject_a, subject_b, rule) DO UPDATE SET
				category=excluded.category,
				score=excluded.score,
				severity=excluded.severity,
				confidence=excluded.confidence,
				explanation=excluded.explanation,
				source_backend=excluded.source_backend,
				static=excluded.static,
				pass=excluded.pass
		`)
		if err != nil {
			return err
		}
		defer findingStmt.Close()

		for _, f := range run.Index.Entries() {
			_, err = findingStmt.ExecContext(ctx, run.ID, f.SubjectA, f.SubjectB, f.Rule,
				f.Category, f.Score, f.Severity, f.Confidence, f.Explanation,
				f.SourceBackend, f.Static, f.Pass)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// ListRuns returns run headers newest first, without blocks or findings.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, created_at, score, summary
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Source, &r.CreatedAt, &r.Score, &r.Summary); err != nil {
			return nil, err
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// GetRun loads a full run including its blocks and findings index.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, created_at, score, summary FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Source, &r.CreatedAt, &r.Score, &r.Summary)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, tier, category, modality, content, scope, priority_markers, line_start, line_end
		FROM blocks WHERE run_id = ? ORDER BY line_start
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blockIDs []string
	for rows.Next() {
		var b block.Block
		var scope, markers []byte
		if err := rows.Scan(&b.ID, &b.Source, &b.Tier, &b.Category, &b.Modality,
			&b.Text, &scope, &markers, &b.LineStart, &b.LineEnd); err != nil {
			return nil, err
		}
		json.Unmarshal(scope, &b.Scope)
		json.Unmarshal(markers, &b.PriorityMarkers)
		r.Blocks = append(r.Blocks, b)
		blockIDs = append(blockIDs, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	frows, err := s.db.QueryContext(ctx, `
		SELECT subject_a, subject_b, rule, category, score, severity, confidence, explanation, source_backend, static, pass
		FROM findings WHERE run_id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	defer frows.Close()

	var (
		findings  []*tensor.Finding
		ruleNames []string
		seenRules = map[string]bool{}
	)
	for frows.Next() {
		var f tensor.Finding
		if err := frows.Scan(&f.SubjectA, &f.SubjectB, &f.Rule, &f.Category, &f.Score,
			&f.Severity, &f.Confidence, &f.Explanation, &f.SourceBackend, &f.Static, &f.Pass); err != nil {
			return nil, err
		}
		if !seenRules[f.Rule] {
			seenRules[f.Rule] = true
			ruleNames = append(ruleNames, f.Rule)
		}
		findings = append(findings, &f)
	}
	if err := frows.Err(); err != nil {
		return nil, err
	}

	if len(findings) > 0 {
		idx := tensor.NewIndex(blockIDs, ruleNames)
		for _, f := range findings {
			idx.Add(f)
		}
		r.Index = idx
	}

	return &r, nil
}

// --- Scour sessions ---

// SaveScourSession persists a session and its passes in one transaction.
func (s *SQLiteStore) SaveScourSession(ctx context.Context, sess *ScourSession) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scour_sessions (id, source, outcome, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			outcome=excluded.outcome,
			created_at=excluded.created_at
	`, sess.ID, sess.Source, string(sess.Outcome), sess.CreatedAt)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scour_passes (session_id, pass, backend, report)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, pass) DO UPDATE SET
			backend=excluded.backend,
			report=excluded.report
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if sess.State != nil {
		for _, rep := range sess.State.Reports {
			body, err := json.Marshal(rep)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, sess.ID, rep.Pass, rep.Backend, body); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// GetScourSession loads a session with its passes in order.
func (s *SQLiteStore) GetScourSession(ctx context.Context, id string) (*ScourSession, error) {
	var sess ScourSession
	var outcome string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, outcome, created_at FROM scour_sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Source, &outcome, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scour session not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	sess.Outcome = scour.Outcome(outcome)

	rows, err := s.db.QueryContext(ctx, `
		SELECT report FROM scour_passes WHERE session_id = ? ORDER BY pass
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sess.State = &scour.State{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var rep scour.Report
		if err := json.Unmarshal(body, &rep); err != nil {
			return nil, err
		}
		sess.State.Reports = append(sess.State.Reports, rep)
	}
	return &sess, rows.Err()
}

// ListScourSessions returns session headers newest first, without passes.
func (s *SQLiteStore) ListScourSessions(ctx context.Context, limit int) ([]*ScourSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, outcome, created_at
		FROM scour_sessions ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*ScourSession
	for rows.Next() {
		var sess ScourSession
		var outcome string
		if err := rows.Scan(&sess.ID, &sess.Source, &outcome, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sess.Outcome = scour.Outcome(outcome)
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// --- Episodes ---

// SaveEpisode persists one episode. The anchor is stored separately from
// the body so dimension queries do not deserialize full narratives.
func (s *SQLiteStore) SaveEpisode(ctx context.Context, ep episode.Episode) error {
	anchor, err := json.Marshal(ep.Anchor)
	if err != nil {
		return err
	}
	body, err := json.Marshal(ep)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO episodes (id, created_at, session, title, anchor, body)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at=excluded.created_at,
			session=excluded.session,
			title=excluded.title,
			anchor=excluded.anchor,
			body=excluded.body
	`, ep.ID, ep.Timestamp, ep.Session, ep.Title, anchor, body)
	return err
}

// Episodes loads all stored episodes, oldest first.
func (s *SQLiteStore) Episodes(ctx context.Context) ([]episode.Episode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM episodes ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []episode.Episode
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var ep episode.Episode
		if err := json.Unmarshal(body, &ep); err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// RetrieveEpisodes returns stored episodes whose anchor matches the query
// above the threshold, best match first.
func (s *SQLiteStore) RetrieveEpisodes(ctx context.Context, query episode.Anchor, threshold float64) ([]episode.Episode, error) {
	all, err := s.Episodes(ctx)
	if err != nil {
		return nil, err
	}
	return episode.Retrieve(all, query, threshold), nil
}
