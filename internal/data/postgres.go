package data

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/contactkeval/backtester/internal/bar"
)

// PostgresProvider fetches bars from a `bars` table
// (code, exchange, date, open, high, low, close, volume), the out-of-scope
// data source named in specification §1/§6.
type PostgresProvider struct {
	db *sqlx.DB
}

// NewPostgresProvider opens a connection pool against dsn (a standard
// postgres:// connection string).
func NewPostgresProvider(dsn string) (*PostgresProvider, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres provider: connect: %w", err)
	}
	return &PostgresProvider{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *PostgresProvider) Close() error { return p.db.Close() }

type barRow struct {
	Date   time.Time `db:"date"`
	Open   float64   `db:"open"`
	High   float64   `db:"high"`
	Low    float64   `db:"low"`
	Close  float64   `db:"close"`
	Volume int64     `db:"volume"`
}

func (p *PostgresProvider) FetchOHLCV(code, exchange string, start, end time.Time) ([]bar.Bar, error) {
	const q = `
		SELECT date, open, high, low, close, volume
		FROM bars
		WHERE code = $1 AND exchange = $2 AND date BETWEEN $3 AND $4
		ORDER BY date ASC`

	var rows []barRow
	if err := p.db.Select(&rows, q, code, exchange, start, end); err != nil {
		return nil, fmt.Errorf("postgres provider: fetch %s: %w", code, err)
	}
	out := make([]bar.Bar, 0, len(rows))
	for _, r := range rows {
		out = append(out, bar.Bar{
			Code: code, Exchange: exchange, Date: r.Date.UTC(),
			Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		})
	}
	return out, nil
}

func (p *PostgresProvider) ListSymbols(exchange string) ([]string, error) {
	const q = `SELECT DISTINCT code FROM bars WHERE exchange = $1 ORDER BY code ASC`
	var codes []string
	if err := p.db.Select(&codes, q, exchange); err != nil {
		return nil, fmt.Errorf("postgres provider: list symbols: %w", err)
	}
	return codes, nil
}
