package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"

	_ "modernc.org/sqlite"
)

// Store is an SQLite FTS5 index of policy document chunks. When an
// embedder is configured, keyword candidates are re-ranked by cosine
// similarity to the query embedding.
type Store struct {
	conn     *sql.DB
	path     string
	mu       sync.RWMutex
	embedder embeddings.Embedder

	chunkSize    int
	chunkOverlap int
}

// Option configures a Store.
type Option func(*Store)

// WithEmbedder enables embedding re-ranking.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(s *Store) { s.embedder = e }
}

// WithChunking overrides the chunk size and overlap.
func WithChunking(size, overlap int) Option {
	return func(s *Store) {
		s.chunkSize = size
		s.chunkOverlap = overlap
	}
}

// DefaultPath returns the default location of the policy index.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claimflow", "policies.db")
}

// Open opens or creates the index at path and ensures its schema.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}

	s := &Store{
		conn:         conn,
		path:         path,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	metadata TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	total_chunks INTEGER NOT NULL,
	policy_type TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	embedding TEXT
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	content,
	chunk_id UNINDEXED
);
`

// Close closes the index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the index file path.
func (s *Store) Path() string {
	return s.path
}

// AddDocument chunks and indexes a document, replacing any previous
// version with the same ID. It returns the number of chunks written.
func (s *Store) AddDocument(ctx context.Context, doc Document) (int, error) {
	if doc.ID == "" {
		return 0, fmt.Errorf("add document: empty id")
	}
	chunks := Chunk(doc.Text, s.chunkSize, s.chunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("add document %s: no content", doc.ID)
	}

	var vectors [][]float32
	if s.embedder != nil {
		v, err := embedBatch(ctx, s.embedder, chunks)
		if err != nil {
			return 0, fmt.Errorf("add document %s: %w", doc.ID, err)
		}
		vectors = v
	}

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}
	policyType := doc.Metadata[MetaPolicyType]

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteDocumentTx(ctx, tx, doc.ID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents (id, metadata) VALUES (?, ?)`, doc.ID, string(meta)); err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}

	for i, text := range chunks {
		id := fmt.Sprintf("%s_chunk_%d", doc.ID, i)
		var emb sql.NullString
		if vectors != nil {
			b, err := json.Marshal(vectors[i])
			if err != nil {
				return 0, fmt.Errorf("encode embedding: %w", err)
			}
			emb = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, chunk_index, total_chunks, policy_type, content, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, doc.ID, i, len(chunks), policyType, text, emb); err != nil {
			return 0, fmt.Errorf("insert chunk: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chunks_fts (content, chunk_id) VALUES (?, ?)`, text, id); err != nil {
			return 0, fmt.Errorf("index chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit document: %w", err)
	}

	slog.Debug("indexed policy document", "id", doc.ID, "chunks", len(chunks), "policy_type", policyType)
	return len(chunks), nil
}

func deleteDocumentTx(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, id); err != nil {
		return fmt.Errorf("delete chunk index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Reset removes every document.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range []string{`DELETE FROM chunks_fts`, `DELETE FROM chunks`, `DELETE FROM documents`} {
		if _, err := s.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("reset index: %w", err)
		}
	}
	return nil
}

var queryTokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// matchExpression turns free text into an FTS5 OR query of quoted terms.
func matchExpression(query string) string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range queryTokenPattern.FindAllString(strings.ToLower(query), -1) {
		if len(tok) < 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, `"`+tok+`"`)
	}
	return strings.Join(terms, " OR ")
}

// Search ranks chunks against query. Relevance is derived from bm25, or
// from cosine similarity when an embedder is configured.
func (s *Store) Search(ctx context.Context, query string, filter Filter, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	expr := matchExpression(query)
	if expr == "" {
		return nil, nil
	}

	limit := topK
	if s.embedder != nil {
		limit = topK * 4
	}

	s.mu.RLock()
	rows, err := s.conn.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.content, c.embedding, d.metadata, bm25(chunks_fts) AS score
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ? AND (? = '' OR c.policy_type = ?)
		ORDER BY score
		LIMIT ?
	`, expr, string(filter.ClaimType), string(filter.ClaimType), limit)
	if err != nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: search: %v", ErrRetrievalUnavailable, err)
	}

	type candidate struct {
		hit       Hit
		embedding []float32
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var emb sql.NullString
		var meta string
		var score float64
		if err := rows.Scan(&c.hit.ChunkID, &c.hit.DocumentID, &c.hit.Text, &emb, &meta, &score); err != nil {
			rows.Close()
			s.mu.RUnlock()
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &c.hit.Metadata); err != nil {
			c.hit.Metadata = map[string]string{}
		}
		if emb.Valid {
			_ = json.Unmarshal([]byte(emb.String), &c.embedding)
		}
		// bm25 is negative; more negative is better.
		strength := -score
		if strength < 0 {
			strength = 0
		}
		c.hit.Relevance = strength / (1 + strength)
		candidates = append(candidates, c)
	}
	err = rows.Err()
	rows.Close()
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("read hits: %w", err)
	}

	if s.embedder != nil && len(candidates) > 0 {
		q, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			slog.Warn("query embedding failed, keeping keyword ranking", "error", err)
		} else {
			for i := range candidates {
				if candidates[i].embedding == nil {
					continue
				}
				sim := cosine(q, candidates[i].embedding)
				if sim < 0 {
					sim = 0
				}
				candidates[i].hit.Relevance = sim
			}
			sort.SliceStable(candidates, func(i, j int) bool {
				return candidates[i].hit.Relevance > candidates[j].hit.Relevance
			})
		}
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	hits := make([]Hit, len(candidates))
	for i, c := range candidates {
		hits[i] = c.hit
	}
	return hits, nil
}
