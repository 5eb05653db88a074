package db

// nodesTableSQL holds folders and documents in one table. The root folder
// has an empty parent_id; content is NULL for folders.
const nodesTableSQL = `
CREATE TABLE IF NOT EXISTS nodes (
	id                     VARCHAR NOT NULL,
	parent_id              VARCHAR NOT NULL,
	name                   VARCHAR NOT NULL,
	path                   VARCHAR NOT NULL,
	base_type              VARCHAR NOT NULL,
	object_type_id         VARCHAR NOT NULL,
	description            VARCHAR NOT NULL DEFAULT '',
	mime_type              VARCHAR NOT NULL DEFAULT '',
	size                   BIGINT NOT NULL DEFAULT 0,
	checksum               VARCHAR,
	version_label          VARCHAR NOT NULL DEFAULT '',
	created_by             VARCHAR NOT NULL DEFAULT '',
	creation_date          TIMESTAMP NOT NULL,
	last_modified_by       VARCHAR NOT NULL DEFAULT '',
	last_modification_date TIMESTAMP NOT NULL,
	content                BLOB
)`

// indexesSQL are plain (non-unique) indexes; path uniqueness is enforced
// under the DB mutex so renames can rewrite paths freely
var indexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_nodes_id ON nodes (id)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes (parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_path ON nodes (path)`,
}
