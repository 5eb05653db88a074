package db

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Project-Sylos/Archivist/internal/cmis"
)

// TestNewDB tests the New function
func TestNewDB(t *testing.T) {
	tests := []struct {
		name        string
		dbPath      string
		expectError bool
		setup       func() string
		cleanup     func(string)
	}{
		{
			name:        "temporary file database",
			expectError: false,
			setup: func() string {
				tmpFile, err := os.CreateTemp("", "test-*.db")
				if err != nil {
					t.Fatal(err)
				}
				tmpFile.Close()
				os.Remove(tmpFile.Name()) // Remove the empty file
				return tmpFile.Name()
			},
			cleanup: func(path string) {
				os.Remove(path)
				os.Remove(path + ".wal")
			},
		},
		{
			name:        "in-memory database",
			dbPath:      ":memory:",
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := tt.dbPath
			if tt.setup != nil {
				dbPath = tt.setup()
				if tt.cleanup != nil {
					defer tt.cleanup(dbPath)
				}
			}

			db, err := New(dbPath)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			defer db.Close()

			root, err := db.GetNodeByPath("/")
			if err != nil {
				t.Fatalf("Expected root node: %v", err)
			}
			if root.ID != RootID {
				t.Errorf("Expected root id %q, got %q", RootID, root.ID)
			}
		})
	}
}

func newNode(id, parentID, name, path, baseType string) *Node {
	now := time.Now().UTC()
	return &Node{
		ID:                   id,
		ParentID:             parentID,
		Name:                 name,
		Path:                 path,
		BaseType:             baseType,
		ObjectTypeID:         baseType,
		CreatedBy:            "tester",
		CreationDate:         now,
		LastModifiedBy:       "tester",
		LastModificationDate: now,
	}
}

// TestDBMethods tests the core database methods
func TestDBMethods(t *testing.T) {
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	t.Run("InsertNode", func(t *testing.T) {
		if err := db.InsertNode(newNode("f1", RootID, "CI", "/CI", cmis.BaseTypeFolder), nil); err != nil {
			t.Fatalf("Unexpected error inserting folder: %v", err)
		}
		doc := newNode("d1", "f1", "report.pdf", "/CI/report.pdf", cmis.BaseTypeDocument)
		doc.MimeType = "application/pdf"
		doc.Size = 5
		if err := db.InsertNode(doc, []byte("hello")); err != nil {
			t.Fatalf("Unexpected error inserting document: %v", err)
		}
	})

	t.Run("InsertNode duplicate path", func(t *testing.T) {
		err := db.InsertNode(newNode("f2", RootID, "CI", "/CI", cmis.BaseTypeFolder), nil)
		if !errors.Is(err, ErrPathExists) {
			t.Errorf("Expected ErrPathExists, got %v", err)
		}
	})

	t.Run("InsertNode under a document", func(t *testing.T) {
		err := db.InsertNode(newNode("x", "d1", "x", "/CI/report.pdf/x", cmis.BaseTypeFolder), nil)
		if !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("Expected ErrNodeNotFound, got %v", err)
		}
	})

	t.Run("GetNodeByID", func(t *testing.T) {
		node, err := db.GetNodeByID("d1")
		if err != nil {
			t.Fatalf("Unexpected error getting node by ID: %v", err)
		}
		if node.Name != "report.pdf" {
			t.Errorf("Expected node name 'report.pdf', got '%s'", node.Name)
		}
		if node.MimeType != "application/pdf" {
			t.Errorf("Expected mime type application/pdf, got %s", node.MimeType)
		}
	})

	t.Run("GetChildren", func(t *testing.T) {
		if err := db.InsertNode(newNode("f3", "f1", "Sub", "/CI/Sub", cmis.BaseTypeFolder), nil); err != nil {
			t.Fatal(err)
		}
		children, total, err := db.GetChildrenByParentID("f1", 0, 0)
		if err != nil {
			t.Fatalf("Unexpected error getting children: %v", err)
		}
		if total != 2 || len(children) != 2 {
			t.Fatalf("Expected 2 children, got %d of %d", len(children), total)
		}
		// folders sort first
		if children[0].ID != "f3" {
			t.Errorf("Expected folder first, got %s", children[0].ID)
		}

		page, total, err := db.GetChildrenByParentID("f1", 1, 1)
		if err != nil {
			t.Fatalf("Unexpected error paging children: %v", err)
		}
		if total != 2 || len(page) != 1 || page[0].ID != "d1" {
			t.Errorf("Expected second page to hold d1, got %v", page)
		}
	})

	t.Run("UpdateContent", func(t *testing.T) {
		if err := db.UpdateContent("d1", []byte("goodbye"), "text/plain", "1.1", "editor"); err != nil {
			t.Fatalf("Unexpected error updating content: %v", err)
		}
		content, err := db.GetContent("d1")
		if err != nil {
			t.Fatalf("Unexpected error reading content: %v", err)
		}
		if string(content) != "goodbye" {
			t.Errorf("Expected updated content, got %q", content)
		}
		node, _ := db.GetNodeByID("d1")
		if node.Size != 7 || node.VersionLabel != "1.1" || node.LastModifiedBy != "editor" {
			t.Errorf("Unexpected bookkeeping after update: %+v", node)
		}
		if node.Checksum == nil || *node.Checksum != ComputeChecksum([]byte("goodbye")) {
			t.Errorf("Expected checksum to follow content")
		}
	})

	t.Run("RenameNode", func(t *testing.T) {
		if err := db.RenameNode("f1", "Archive", "editor"); err != nil {
			t.Fatalf("Unexpected error renaming: %v", err)
		}
		if _, err := db.GetNodeByPath("/Archive/report.pdf"); err != nil {
			t.Errorf("Expected descendant path to move: %v", err)
		}
		if _, err := db.GetNodeByPath("/CI/Sub"); !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("Expected old path to be gone, got %v", err)
		}
	})

	t.Run("DeleteSubtree", func(t *testing.T) {
		removed, err := db.DeleteSubtree("/Archive")
		if err != nil {
			t.Fatalf("Unexpected error deleting subtree: %v", err)
		}
		if removed != 3 {
			t.Errorf("Expected 3 rows removed, got %d", removed)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		if err := db.InsertNode(newNode("f4", RootID, "Tmp", "/Tmp", cmis.BaseTypeFolder), nil); err != nil {
			t.Fatal(err)
		}
		if err := db.DeleteAllNodes(); err != nil {
			t.Errorf("Unexpected error resetting database: %v", err)
		}
		count, err := db.GetNodeCount()
		if err != nil {
			t.Errorf("Unexpected error getting node count after reset: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected only the root after reset, got %d", count)
		}
	})
}

// TestDBErrorHandling tests error handling scenarios
func TestDBErrorHandling(t *testing.T) {
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	tests := []struct {
		name     string
		testFunc func() error
	}{
		{
			name: "GetNodeByID with invalid ID",
			testFunc: func() error {
				_, err := db.GetNodeByID("invalid-id")
				return err
			},
		},
		{
			name: "GetContent with invalid ID",
			testFunc: func() error {
				_, err := db.GetContent("invalid-id")
				return err
			},
		},
		{
			name: "UpdateDescription with invalid ID",
			testFunc: func() error {
				return db.UpdateDescription("invalid-id", "x", "tester")
			},
		},
		{
			name: "RenameNode with invalid ID",
			testFunc: func() error {
				return db.RenameNode("invalid-id", "x", "tester")
			},
		},
		{
			name: "DeleteNode with invalid ID",
			testFunc: func() error {
				return db.DeleteNode("invalid-id")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.testFunc()
			if !errors.Is(err, ErrNodeNotFound) {
				t.Errorf("Expected ErrNodeNotFound, got %v", err)
			}
		})
	}
}

func TestComputeChecksum(t *testing.T) {
	// sha256 of "hello world"
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got := ComputeChecksum([]byte("hello world")); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
