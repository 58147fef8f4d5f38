package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/charmbracelet/log"
	"github.com/radicalcardists/card-recommender/internal/types"
	"github.com/shopspring/decimal"
)

// DB is the SQLite card catalog. It is the source of truth for the
// tie-break fields (annual fee, minimum spend) and the discontinued
// flag.
type DB struct {
	db     *sql.DB
	logger *log.Logger
}

// New opens (or creates) the catalog database under dataDir
func New(dataDir string, logger *log.Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "cards.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("failed to set database pragmas: %v", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			issuer TEXT NOT NULL,
			type TEXT NOT NULL,
			annual_fee TEXT NOT NULL,
			prev_month_min TEXT NOT NULL,
			online_only INTEGER NOT NULL DEFAULT 0,
			discontinued INTEGER NOT NULL DEFAULT 0,
			benefits TEXT NOT NULL,
			notes TEXT
		);

		-- Full-text search over card and issuer names
		CREATE VIRTUAL TABLE IF NOT EXISTS cards_fts USING fts5(
			name,
			issuer,
			content='cards',
			content_rowid='rowid'
		);

		CREATE TRIGGER IF NOT EXISTS cards_ai AFTER INSERT ON cards BEGIN
			INSERT INTO cards_fts(rowid, name, issuer) VALUES (new.rowid, new.name, new.issuer);
		END;

		CREATE TRIGGER IF NOT EXISTS cards_ad AFTER DELETE ON cards BEGIN
			DELETE FROM cards_fts WHERE rowid = old.rowid;
		END;

		CREATE TRIGGER IF NOT EXISTS cards_au AFTER UPDATE ON cards BEGIN
			DELETE FROM cards_fts WHERE rowid = old.rowid;
			INSERT INTO cards_fts(rowid, name, issuer) VALUES (new.rowid, new.name, new.issuer);
		END;
	`)
	if err != nil {
		return fmt.Errorf("failed to create cards table: %v", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_cards_type ON cards(type)",
		"CREATE INDEX IF NOT EXISTS idx_cards_discontinued ON cards(discontinued)",
		"CREATE INDEX IF NOT EXISTS idx_cards_issuer ON cards(issuer)",
	}
	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %v", err)
		}
	}
	return nil
}

// GenerateCardID derives a stable id for card records that arrive
// without one
func GenerateCardID(issuer, name string) string {
	hash := sha256.Sum256([]byte(issuer + "\x00" + name))
	return hex.EncodeToString(hash[:8])
}

// Upsert inserts or replaces a card record
func (d *DB) Upsert(ctx context.Context, card types.Card) error {
	if card.ID == "" {
		return fmt.Errorf("card is missing an id")
	}
	benefits, err := json.Marshal(card.Benefits)
	if err != nil {
		return fmt.Errorf("failed to marshal benefits: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO cards (id, name, issuer, type, annual_fee, prev_month_min, online_only, discontinued, benefits, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			issuer = excluded.issuer,
			type = excluded.type,
			annual_fee = excluded.annual_fee,
			prev_month_min = excluded.prev_month_min,
			online_only = excluded.online_only,
			discontinued = excluded.discontinued,
			benefits = excluded.benefits,
			notes = excluded.notes
	`, card.ID, card.Name, card.Issuer, string(card.Type),
		card.AnnualFee.String(), card.PrevMonthMin.String(),
		boolToInt(card.OnlineOnly), boolToInt(card.Discontinued),
		string(benefits), card.Notes)
	if err != nil {
		return fmt.Errorf("failed to upsert card %s: %w", card.ID, err)
	}

	d.logger.Debug("Upserted card", "card_id", card.ID, "name", card.Name)
	return nil
}

// Get fetches a single card by id
func (d *DB) Get(ctx context.Context, id string) (*types.Card, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, name, issuer, type, annual_fee, prev_month_min, online_only, discontinued, benefits, notes
		FROM cards WHERE id = ?
	`, id)
	card, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("card %s not found", id)
		}
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	return card, nil
}

// List returns every card; discontinued cards are excluded unless asked for
func (d *DB) List(ctx context.Context, includeDiscontinued bool) ([]types.Card, error) {
	query := `
		SELECT id, name, issuer, type, annual_fee, prev_month_min, online_only, discontinued, benefits, notes
		FROM cards`
	if !includeDiscontinued {
		query += ` WHERE discontinued = 0`
	}
	query += ` ORDER BY id`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []types.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// SearchByName runs a full-text search over card and issuer names
func (d *DB) SearchByName(ctx context.Context, query string, limit int) ([]types.Card, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.issuer, c.type, c.annual_fee, c.prev_month_min, c.online_only, c.discontinued, c.benefits, c.notes
		FROM cards c
		JOIN cards_fts fts ON c.rowid = fts.rowid
		WHERE cards_fts MATCH ? AND c.discontinued = 0
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search cards: %w", err)
	}
	defer rows.Close()

	var cards []types.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// MarkDiscontinued flags a card as discontinued; its chunks must also be
// removed from the similarity index by the caller
func (d *DB) MarkDiscontinued(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `UPDATE cards SET discontinued = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark card %s discontinued: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("card %s not found", id)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*types.Card, error) {
	var card types.Card
	var cardType, annualFee, prevMonthMin, benefits string
	var onlineOnly, discontinued int
	var notes sql.NullString

	err := row.Scan(&card.ID, &card.Name, &card.Issuer, &cardType,
		&annualFee, &prevMonthMin, &onlineOnly, &discontinued, &benefits, &notes)
	if err != nil {
		return nil, err
	}

	card.Type = types.CardType(cardType)
	card.AnnualFee, err = decimal.NewFromString(annualFee)
	if err != nil {
		return nil, fmt.Errorf("invalid annual fee %q: %w", annualFee, err)
	}
	card.PrevMonthMin, err = decimal.NewFromString(prevMonthMin)
	if err != nil {
		return nil, fmt.Errorf("invalid prev month min %q: %w", prevMonthMin, err)
	}
	card.OnlineOnly = onlineOnly != 0
	card.Discontinued = discontinued != 0
	card.Notes = notes.String

	if err := json.Unmarshal([]byte(benefits), &card.Benefits); err != nil {
		return nil, fmt.Errorf("invalid benefits payload for card %s: %w", card.ID, err)
	}
	return &card, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
