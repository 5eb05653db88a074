package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
)

// RootID is the id of the repository root folder
const RootID = "root"

var (
	// ErrNodeNotFound is returned when no row matches
	ErrNodeNotFound = errors.New("node not found")
	// ErrPathExists is returned when a sibling already uses the name
	ErrPathExists = errors.New("path already exists")
)

// Node is one row of the nodes table
type Node struct {
	ID                   string
	ParentID             string
	Name                 string
	Path                 string
	BaseType             string
	ObjectTypeID         string
	Description          string
	MimeType             string
	Size                 int64
	Checksum             *string // documents only
	VersionLabel         string
	CreatedBy            string
	CreationDate         time.Time
	LastModifiedBy       string
	LastModificationDate time.Time
}

// DB wraps DuckDB connection and provides single-table CRUD operations
type DB struct {
	conn *sql.DB
	mu   sync.Mutex // Protects all database operations from concurrent access
}

const nodeColumns = `id, parent_id, name, path, base_type, object_type_id, description, mime_type, size,
checksum, version_label, created_by, creation_date, last_modified_by, last_modification_date`

// New creates a new database connection and initializes the schema.
// ":memory:" and "" open an in-memory database.
func New(dbPath string) (*DB, error) {
	if dbPath == ":memory:" {
		dbPath = ""
	}
	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.InitializeSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// InitializeSchema creates the nodes table and the root folder if missing
func (db *DB) InitializeSchema() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(nodesTableSQL); err != nil {
		return fmt.Errorf("failed to create nodes table: %w", err)
	}
	for _, stmt := range indexesSQL {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}
	return db.createRootLocked()
}

func (db *DB) createRootLocked() error {
	var exists bool
	err := db.conn.QueryRow("SELECT EXISTS(SELECT 1 FROM nodes WHERE id = ?)", RootID).Scan(&exists)
	if err == nil && exists {
		return nil
	}

	now := time.Now().UTC()
	root := &Node{
		ID:                   RootID,
		Name:                 "",
		Path:                 "/",
		BaseType:             cmis.BaseTypeFolder,
		ObjectTypeID:         cmis.BaseTypeFolder,
		CreatedBy:            "system",
		CreationDate:         now,
		LastModifiedBy:       "system",
		LastModificationDate: now,
	}
	if err := db.insertLocked(root, nil); err != nil {
		return fmt.Errorf("failed to create root node: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// NewNodeID returns a fresh node id
func NewNodeID() string {
	return uuid.New().String()
}

// InsertNode inserts a node with optional content. It fails with
// ErrPathExists when the path is taken and ErrNodeNotFound when the parent
// folder is missing.
func (db *DB) InsertNode(node *Node, content []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var parentType string
	err := db.conn.QueryRow("SELECT base_type FROM nodes WHERE id = ?", node.ParentID).Scan(&parentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("parent %s: %w", node.ParentID, ErrNodeNotFound)
		}
		return fmt.Errorf("failed to get parent node: %w", err)
	}
	if parentType != cmis.BaseTypeFolder {
		return fmt.Errorf("parent %s is not a folder: %w", node.ParentID, ErrNodeNotFound)
	}
	if taken, err := db.pathExistsLocked(node.Path); err != nil {
		return err
	} else if taken {
		return fmt.Errorf("%s: %w", node.Path, ErrPathExists)
	}
	return db.insertLocked(node, content)
}

func (db *DB) insertLocked(node *Node, content []byte) error {
	query := `INSERT INTO nodes (` + nodeColumns + `, content) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var checksumVal interface{}
	if node.Checksum != nil {
		checksumVal = *node.Checksum
	}
	_, err := db.conn.Exec(query,
		node.ID,
		node.ParentID,
		node.Name,
		node.Path,
		node.BaseType,
		node.ObjectTypeID,
		node.Description,
		node.MimeType,
		node.Size,
		checksumVal,
		node.VersionLabel,
		node.CreatedBy,
		node.CreationDate,
		node.LastModifiedBy,
		node.LastModificationDate,
		content,
	)
	if err != nil {
		return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
	}
	return nil
}

func (db *DB) pathExistsLocked(path string) (bool, error) {
	var exists bool
	if err := db.conn.QueryRow("SELECT EXISTS(SELECT 1 FROM nodes WHERE path = ?)", path).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check path %s: %w", path, err)
	}
	return exists, nil
}

// GetNodeByID retrieves a node by its ID
func (db *DB) GetNodeByID(id string) (*Node, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRow("SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
	node, err := scanNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ErrNodeNotFound)
		}
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	return node, nil
}

// GetNodeByPath retrieves a node by its path
func (db *DB) GetNodeByPath(path string) (*Node, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRow("SELECT "+nodeColumns+" FROM nodes WHERE path = ? LIMIT 1", path)
	node, err := scanNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", path, ErrNodeNotFound)
		}
		return nil, fmt.Errorf("failed to get node by path %s: %w", path, err)
	}
	return node, nil
}

// GetChildrenByParentID returns one page of children, folders first and
// then by name, plus the total number of children
func (db *DB) GetChildrenByParentID(parentID string, skip, max int) ([]*Node, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var total int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM nodes WHERE parent_id = ? AND id <> ?", parentID, RootID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count children of %s: %w", parentID, err)
	}

	query := `
SELECT ` + nodeColumns + `
FROM nodes
WHERE parent_id = ? AND id <> ?
ORDER BY base_type DESC, name
LIMIT ? OFFSET ?`
	if max <= 0 {
		max = total
	}

	rows, err := db.conn.Query(query, parentID, RootID, max, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query children of %s: %w", parentID, err)
	}
	defer rows.Close()

	var children []*Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan child node: %w", err)
		}
		children = append(children, node)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating children: %w", err)
	}
	return children, total, nil
}

// CheckChildrenExist checks if a folder has any children
func (db *DB) CheckChildrenExist(parentID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM nodes WHERE parent_id = ? AND id <> ?", parentID, RootID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check children existence for %s: %w", parentID, err)
	}
	return count > 0, nil
}

// GetContent returns the stored bytes of a document
func (db *DB) GetContent(id string) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var content []byte
	err := db.conn.QueryRow("SELECT content FROM nodes WHERE id = ?", id).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ErrNodeNotFound)
		}
		return nil, fmt.Errorf("failed to read content of %s: %w", id, err)
	}
	return content, nil
}

// UpdateContent replaces a document's bytes and bumps its bookkeeping
func (db *DB) UpdateContent(id string, content []byte, mimeType, versionLabel, user string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	query := `
UPDATE nodes
SET content = ?, size = ?, checksum = ?, mime_type = ?, version_label = ?,
    last_modified_by = ?, last_modification_date = ?
WHERE id = ?`
	result, err := db.conn.Exec(query,
		content, int64(len(content)), ComputeChecksum(content), mimeType, versionLabel,
		user, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update content of %s: %w", id, err)
	}
	return expectRow(result, id)
}

// UpdateDescription sets a node's description
func (db *DB) UpdateDescription(id, description, user string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.Exec(
		"UPDATE nodes SET description = ?, last_modified_by = ?, last_modification_date = ? WHERE id = ?",
		description, user, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update description of %s: %w", id, err)
	}
	return expectRow(result, id)
}

// RenameNode renames a node and rewrites the paths of everything below it
func (db *DB) RenameNode(id, newName, user string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var oldPath, parentID string
	err := db.conn.QueryRow("SELECT path, parent_id FROM nodes WHERE id = ?", id).Scan(&oldPath, &parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", id, ErrNodeNotFound)
		}
		return fmt.Errorf("failed to get node %s: %w", id, err)
	}
	parentPath := oldPath[:strings.LastIndex(oldPath, "/")]
	newPath := parentPath + "/" + newName
	if newPath == oldPath {
		return nil
	}
	if taken, err := db.pathExistsLocked(newPath); err != nil {
		return err
	} else if taken {
		return fmt.Errorf("%s: %w", newPath, ErrPathExists)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"UPDATE nodes SET name = ?, path = ?, last_modified_by = ?, last_modification_date = ? WHERE id = ?",
		newName, newPath, user, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to rename %s: %w", id, err)
	}
	// substr is 1-based, so this keeps the "/" that follows the old prefix
	if _, err := tx.Exec(
		"UPDATE nodes SET path = ? || substr(path, ?) WHERE starts_with(path, ?)",
		newPath, len(oldPath)+1, oldPath+"/"); err != nil {
		return fmt.Errorf("failed to move descendants of %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteNode deletes a node from the nodes table
func (db *DB) DeleteNode(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.Exec("DELETE FROM nodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete node %s: %w", id, err)
	}
	return expectRow(result, id)
}

// DeleteSubtree removes the node at path and everything below it in one
// transaction, returning the number of rows removed
func (db *DB) DeleteSubtree(path string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec("DELETE FROM nodes WHERE path = ? OR starts_with(path, ?)", path, path+"/")
	if err != nil {
		return 0, fmt.Errorf("failed to delete subtree %s: %w", path, err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return removed, nil
}

// DeleteAllNodes removes every node and recreates the root folder
func (db *DB) DeleteAllNodes() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec("DELETE FROM nodes"); err != nil {
		return fmt.Errorf("failed to delete from nodes table: %w", err)
	}
	return db.createRootLocked()
}

// GetNodeCount returns the number of nodes, root included
func (db *DB) GetNodeCount() (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get node count: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*Node, error) {
	node := &Node{}
	var checksumNull sql.NullString
	err := row.Scan(
		&node.ID,
		&node.ParentID,
		&node.Name,
		&node.Path,
		&node.BaseType,
		&node.ObjectTypeID,
		&node.Description,
		&node.MimeType,
		&node.Size,
		&checksumNull,
		&node.VersionLabel,
		&node.CreatedBy,
		&node.CreationDate,
		&node.LastModifiedBy,
		&node.LastModificationDate,
	)
	if err != nil {
		return nil, err
	}
	if checksumNull.Valid {
		node.Checksum = &checksumNull.String
	}
	node.CreationDate = node.CreationDate.UTC()
	node.LastModificationDate = node.LastModificationDate.UTC()
	return node, nil
}

func expectRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", id, ErrNodeNotFound)
	}
	return nil
}
