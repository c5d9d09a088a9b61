//go:build cgo

package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

// KuzuStore implements Store using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given path, so the index survives across runs. KuzuDB creates the leaf
// itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Node tables precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS File(
		path STRING,
		language STRING,
		decl_count INT64,
		PRIMARY KEY(path)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Decl(
		id STRING,
		file_path STRING,
		type_name STRING,
		kind STRING,
		name STRING,
		signature STRING,
		provenance STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS DECLARES(FROM File TO Decl)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddFile inserts a File node.
func (s *KuzuStore) AddFile(_ context.Context, node FileNode) error {
	return s.exec(
		"CREATE (f:File {path: $path, language: $lang, decl_count: $n})",
		map[string]any{
			"path": node.Path,
			"lang": string(node.Language),
			"n":    int64(node.DeclCount),
		},
	)
}

// AddDecl inserts a Decl node and links it to its file when the file is
// indexed.
func (s *KuzuStore) AddDecl(_ context.Context, node DeclNode) error {
	err := s.exec(
		`CREATE (d:Decl {
			id: $id,
			file_path: $fp,
			type_name: $tn,
			kind: $kind,
			name: $name,
			signature: $sig,
			provenance: $prov
		})`,
		map[string]any{
			"id":   node.ID(),
			"fp":   node.FilePath,
			"tn":   node.TypeName,
			"kind": string(node.Kind),
			"name": node.Name,
			"sig":  node.Signature,
			"prov": node.Provenance.String(),
		},
	)
	if err != nil {
		return err
	}
	return s.exec(
		`MATCH (f:File {path: $fp}), (d:Decl {id: $id})
		 CREATE (f)-[:DECLARES]->(d)`,
		map[string]any{"fp": node.FilePath, "id": node.ID()},
	)
}

// RemoveFile deletes the file node and every declaration recorded for it.
func (s *KuzuStore) RemoveFile(_ context.Context, path string) error {
	params := map[string]any{"path": path}
	if err := s.exec("MATCH (d:Decl) WHERE d.file_path = $path DETACH DELETE d", params); err != nil {
		return err
	}
	return s.exec("MATCH (f:File {path: $path}) DETACH DELETE f", params)
}

// ---------- Read operations ----------

// GetFile retrieves a single File node by path, or returns nil if not found.
func (s *KuzuStore) GetFile(_ context.Context, path string) (*FileNode, error) {
	rows, err := s.query(
		"MATCH (f:File {path: $path}) RETURN f.path, f.language, f.decl_count",
		map[string]any{"path": path},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &FileNode{
		Path:      toString(r[0]),
		Language:  decl.Language(toString(r[1])),
		DeclCount: toInt(r[2]),
	}, nil
}

// QueryDecls builds a parameterized MATCH from the non-zero fields of q.
// Ordering and the limit are applied after the query.
func (s *KuzuStore) QueryDecls(_ context.Context, q Query) ([]DeclNode, error) {
	var where []string
	params := map[string]any{}
	if q.Name != "" {
		where = append(where, "lower(d.name) CONTAINS $name")
		params["name"] = strings.ToLower(q.Name)
	}
	if q.Kind != "" {
		where = append(where, "d.kind = $kind")
		params["kind"] = string(q.Kind)
	}
	if q.Provenance != nil {
		where = append(where, "d.provenance = $prov")
		params["prov"] = q.Provenance.String()
	}
	if q.FilePath != "" {
		where = append(where, "d.file_path = $fp")
		params["fp"] = q.FilePath
	}

	var b strings.Builder
	b.WriteString("MATCH (d:Decl)")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" RETURN d.file_path, d.type_name, d.kind, d.name, d.signature, d.provenance")

	rows, err := s.query(b.String(), params)
	if err != nil {
		return nil, err
	}
	out := make([]DeclNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToDecl(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ---------- Stats ----------

// Stats returns file and declaration counts per provenance.
func (s *KuzuStore) Stats(_ context.Context) (*Stats, error) {
	files, err := s.count("MATCH (n:File) RETURN count(n)")
	if err != nil {
		return nil, err
	}
	rows, err := s.query("MATCH (d:Decl) RETURN d.provenance, count(d)", nil)
	if err != nil {
		return nil, err
	}
	st := &Stats{FileCount: files}
	for _, r := range rows {
		n := toInt(r[1])
		st.DeclCount += n
		switch toString(r[0]) {
		case decl.Generated.String():
			st.Generated += n
		case decl.Manual.String():
			st.Manual += n
		default:
			st.Unmarked += n
		}
	}
	return st, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a Cypher statement and collects all result rows in column
// order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func (s *KuzuStore) count(cypher string) (int, error) {
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// rowToDecl converts a 6-column result row into a DeclNode.
// Column order: file_path, type_name, kind, name, signature, provenance.
func rowToDecl(r []any) DeclNode {
	prov, _ := decl.ParseProvenance(toString(r[5]))
	return DeclNode{
		FilePath:   toString(r[0]),
		TypeName:   toString(r[1]),
		Kind:       DeclKind(toString(r[2])),
		Name:       toString(r[3]),
		Signature:  toString(r[4]),
		Provenance: prov,
	}
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, string).

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
