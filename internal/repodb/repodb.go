// Package repodb reads the repo metadata database produced by the metadata
// tooling. The audio core only needs one slice of it: the mapping between
// album ids and catalog numbers, which lets the convention provider key
// human-named directories by UUID.
package repodb

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a catalog or album id has no row.
var ErrNotFound = errors.New("repodb: not found")

// Album is one release row.
type Album struct {
	AlbumID     string
	Catalog     string
	Title       string
	ReleaseDate string
	DiscCount   int
}

// Database is a read-only handle on the repo database.
type Database struct {
	db *sql.DB
}

// Open opens the database at path. The file must already exist; the core
// never creates or migrates repo databases.
func Open(path string) (*Database, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open repo db %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open repo db %q: %w", path, err)
	}
	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// AlbumByCatalog resolves a catalog number to its release row.
func (d *Database) AlbumByCatalog(catalog string) (Album, error) {
	row := d.db.QueryRow(`
		SELECT album_id, catalog, title, release_date, disc_count
		FROM album
		WHERE catalog = ?
	`, catalog)
	return scanAlbum(row)
}

// AlbumByID resolves an album id to its release row.
func (d *Database) AlbumByID(albumID string) (Album, error) {
	row := d.db.QueryRow(`
		SELECT album_id, catalog, title, release_date, disc_count
		FROM album
		WHERE album_id = ?
	`, albumID)
	return scanAlbum(row)
}

func scanAlbum(row *sql.Row) (Album, error) {
	var a Album
	err := row.Scan(&a.AlbumID, &a.Catalog, &a.Title, &a.ReleaseDate, &a.DiscCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Album{}, ErrNotFound
	}
	if err != nil {
		return Album{}, err
	}
	return a, nil
}
