package models

// CreateFolderRequest represents the request to create a folder under path
type CreateFolderRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// RenameFolderRequest represents the request to rename the folder at path
type RenameFolderRequest struct {
	Path    string `json:"path"`
	NewName string `json:"new_name"`
}

// UpdateContentRequest represents the request to replace a document's content
type UpdateContentRequest struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// CopyDocumentRequest represents the request to copy a document between folders
type CopyDocumentRequest struct {
	SourcePath      string `json:"source_path"`
	Name            string `json:"name"`
	DestinationPath string `json:"destination_path"`
}

// NotifyRequest optionally overrides the configured subject and body
type NotifyRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
