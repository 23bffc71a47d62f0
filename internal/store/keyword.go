package store

import "context"

// KeywordType is one of the three places a keyword can be matched
// against (spec §3 Keyword).
type KeywordType string

const (
	KeywordAudio    KeywordType = "audio"
	KeywordSubtitle KeywordType = "subtitle"
	KeywordMeta     KeywordType = "meta"
)

// Keyword is an operator-supplied blacklist entry.
type Keyword struct {
	ID      int
	Type    KeywordType
	Content string
	Enabled bool
}

// ListKeywords returns every enabled keyword of the given type.
func (s *Store) ListKeywords(ctx context.Context, t KeywordType) ([]Keyword, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, content, enabled FROM keywords WHERE type=? AND enabled=1`, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Keyword
	for rows.Next() {
		var k Keyword
		if err := rows.Scan(&k.ID, &k.Type, &k.Content, &k.Enabled); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// CountKeywords reports how many keyword rows exist, used to decide
// whether to seed the built-in list on first run (spec §4.6).
func (s *Store) CountKeywords(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM keywords`).Scan(&n)
	return n, err
}

// AddKeyword inserts a new keyword, enabled by default.
func (s *Store) AddKeyword(ctx context.Context, t KeywordType, content string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO keywords (type, content, enabled) VALUES (?, ?, 1)`, t, content)
	return err
}
