package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	lmerrors "github.com/standardbeagle/lexmatch/internal/errors"
	"github.com/standardbeagle/lexmatch/internal/vocabulary"
)

// ErrTooManyColumns is returned when a vocabulary query yields rows with
// more than one column.
var ErrTooManyColumns = errors.New("query returned more than one column")

// Query maps one entity label to the SQL that selects its members.
type Query struct {
	Label string
	SQL   string
}

// SQLSource runs one single-column query per label against a database/sql
// driver ("sqlite" or "mysql"). Queries run in the configured order.
type SQLSource struct {
	SourceName string
	Driver     string
	DSN        string
	Queries    []Query
}

func (s *SQLSource) Name() string { return "database:" + s.SourceName }

func (s *SQLSource) Load(ctx context.Context) ([]vocabulary.Definition, error) {
	db, err := sql.Open(s.Driver, s.DSN)
	if err != nil {
		return nil, loadError(s.Name(), fmt.Errorf("open %s: %w", s.Driver, err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, loadError(s.Name(), fmt.Errorf("connect: %w", err))
	}

	defs := make([]vocabulary.Definition, 0, len(s.Queries))
	for _, q := range s.Queries {
		members, err := queryMembers(ctx, db, q.SQL)
		if err != nil {
			return nil, lmerrors.NewVocabularyLoadError(s.Name(), err).WithLabel(q.Label)
		}
		defs = append(defs, vocabulary.Definition{Label: q.Label, Members: members, Source: s.Name()})
	}
	return defs, nil
}

func queryMembers(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) != 1 {
		return nil, ErrTooManyColumns
	}

	var members []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			members = append(members, v.String)
		}
	}
	return members, rows.Err()
}

// MySQLDSN builds a go-sql-driver DSN from discrete connection settings.
// host may carry a port ("db:3306"); the default port is used otherwise.
func MySQLDSN(host, user, password, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = database
	cfg.Net = "tcp"
	cfg.Addr = host
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:3306"
	}
	cfg.Timeout = 10 * time.Second
	return cfg.FormatDSN()
}
