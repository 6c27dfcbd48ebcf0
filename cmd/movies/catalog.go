package main

import (
	"errors"
	"fmt"

	memdb "github.com/hashicorp/go-memdb"
)

const (
	movieTable = "movie"
	titleIndex = "id"
)

var ErrMovieExists = errors.New("movie already in catalog")

var defaultMovies = []Movie{
	{Title: "Avengers", ImageURL: "https://images-na.ssl-images-amazon.com/images/I/71wV2rzkFwL._AC_SL1022_.jpg"},
	{Title: "Batman", ImageURL: "https://images-na.ssl-images-amazon.com/images/I/41KexDwgESL._AC_.jpg"},
	{Title: "Matrix", ImageURL: "https://images-na.ssl-images-amazon.com/images/I/91BKjFYwvoL._SY450_.jpg"},
	{Title: "Simpsons", ImageURL: "https://images-na.ssl-images-amazon.com/images/I/41AUWfJN%2BJL._AC_.jpg"},
	{Title: "Superman", ImageURL: "https://images-na.ssl-images-amazon.com/images/I/51KtPqh3nkL.jpg"},
}

func catalogSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			movieTable: {
				Name: movieTable,
				Indexes: map[string]*memdb.IndexSchema{
					titleIndex: {
						Name:    titleIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Title"},
					},
				},
			},
		},
	}
}

// Catalog is the in-memory movie database the loader reads from.
type Catalog struct {
	db *memdb.MemDB
}

func NewCatalog(movies ...Movie) (*Catalog, error) {
	db, err := memdb.NewMemDB(catalogSchema())
	if err != nil {
		return nil, err
	}
	c := &Catalog{db: db}
	for _, movie := range movies {
		if err := c.Add(movie); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add inserts movie unless a movie with the same title exists.
func (c *Catalog) Add(movie Movie) error {
	txn := c.db.Txn(true)
	defer txn.Abort()

	old, err := txn.First(movieTable, titleIndex, movie.Title)
	if err != nil {
		return err
	} else if old != nil {
		return fmt.Errorf("%w: %s", ErrMovieExists, movie.Title)
	}

	if err := txn.Insert(movieTable, movie); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (c *Catalog) Get(title string) (Movie, bool, error) {
	txn := c.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(movieTable, titleIndex, title)
	if err != nil || raw == nil {
		return Movie{}, false, err
	}
	return raw.(Movie), true, nil
}

// All returns every movie ordered by title.
func (c *Catalog) All() ([]Movie, error) {
	txn := c.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(movieTable, titleIndex)
	if err != nil {
		return nil, err
	}
	var movies []Movie
	for raw := it.Next(); raw != nil; raw = it.Next() {
		movies = append(movies, raw.(Movie))
	}
	return movies, nil
}
