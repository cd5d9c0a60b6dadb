package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ShayCichocki/claimflow/internal/orchestrator"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// Record is an archived session.
type Record struct {
	SessionID  string
	ClaimID    string
	Phase      models.Phase
	Verdict    models.Verdict
	Transcript string
	// AuditJSON is the audit trail encoded as a JSON array.
	AuditJSON  string
	Report     string
	IntakeNote string
	StartedAt  time.Time
	ArchivedAt time.Time
}

// Archive stores finalized and abandoned sessions in SQLite.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens or creates the archive at path.
func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS archived_sessions (
			session_id TEXT PRIMARY KEY,
			claim_id TEXT,
			phase TEXT NOT NULL,
			verdict TEXT,
			transcript TEXT,
			audit_json TEXT,
			report TEXT,
			intake_note TEXT,
			started_at DATETIME,
			archived_at DATETIME
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// RecordFrom captures the current state of s.
func RecordFrom(s *orchestrator.Session, now time.Time) (*Record, error) {
	audit, err := json.Marshal(s.Audit())
	if err != nil {
		return nil, fmt.Errorf("encode audit trail: %w", err)
	}
	conv := s.Conversation()
	r := &Record{
		SessionID:  s.ID(),
		Phase:      s.State(),
		Transcript: conv.Transcript(),
		AuditJSON:  string(audit),
		IntakeNote: s.IntakeNote(),
		ArchivedAt: now,
	}
	if len(conv.Turns) > 0 {
		r.StartedAt = conv.Turns[0].At
	}
	if c := s.Claim(); c != nil {
		r.ClaimID = c.ID()
	}
	if d := s.Decision(); d != nil {
		r.Verdict = d.Verdict
	}
	if rep := s.Report(); rep != nil {
		r.Report = rep.Text
	}
	return r, nil
}

// Save inserts or replaces a record.
func (a *Archive) Save(ctx context.Context, r *Record) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO archived_sessions
			(session_id, claim_id, phase, verdict, transcript, audit_json, report, intake_note, started_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.SessionID, r.ClaimID, string(r.Phase), string(r.Verdict), r.Transcript, r.AuditJSON, r.Report, r.IntakeNote, r.StartedAt, r.ArchivedAt)
	if err != nil {
		return fmt.Errorf("archive session %s: %w", r.SessionID, err)
	}
	return nil
}

// Get returns the record for sessionID, or nil if there is none.
func (a *Archive) Get(ctx context.Context, sessionID string) (*Record, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT session_id, claim_id, phase, verdict, transcript, audit_json, report, intake_note, started_at, archived_at
		FROM archived_sessions
		WHERE session_id = ?
	`, sessionID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archived session: %w", err)
	}
	return r, nil
}

// List returns up to limit records, most recently archived first.
func (a *Archive) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT session_id, claim_id, phase, verdict, transcript, audit_json, report, intake_note, started_at, archived_at
		FROM archived_sessions
		ORDER BY archived_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list archived sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archived session: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var r Record
	var phase string
	var claimID, verdict, transcript, audit, report, note sql.NullString
	var started, archived sql.NullTime
	if err := s.Scan(&r.SessionID, &claimID, &phase, &verdict, &transcript, &audit, &report, &note, &started, &archived); err != nil {
		return nil, err
	}
	r.ClaimID = claimID.String
	r.Phase = models.Phase(phase)
	r.Verdict = models.Verdict(verdict.String)
	r.Transcript = transcript.String
	r.AuditJSON = audit.String
	r.Report = report.String
	r.IntakeNote = note.String
	r.StartedAt = started.Time
	r.ArchivedAt = archived.Time
	return &r, nil
}
