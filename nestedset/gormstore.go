package nestedset

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Gormstore is a gorm-backed implementation of the Store interface. It
// works against any table whose layout is described by its Config; sqlite
// and postgres are the supported dialects.
type Gormstore struct {
	db  *gorm.DB
	cfg Config
}

func NewGormstore(db *gorm.DB, cfg Config) (*Gormstore, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Gormstore{db: db, cfg: cfg}, nil
}

// EnsureSchema creates the configured table and its interval indexes if
// they do not exist yet.
func (s *Gormstore) EnsureSchema(ctx context.Context) error {
	c := s.cfg

	var idDef string
	switch s.db.Dialector.Name() {
	case "sqlite":
		idDef = "INTEGER PRIMARY KEY AUTOINCREMENT"
	case "postgres":
		idDef = "BIGSERIAL PRIMARY KEY"
	default:
		return fmt.Errorf("unsupported dialect for schema creation: %s", s.db.Dialector.Name())
	}

	cols := []string{
		fmt.Sprintf("%s %s", c.IDColumn, idDef),
		fmt.Sprintf("%s TEXT NOT NULL", c.NameColumn),
		fmt.Sprintf("%s BIGINT NOT NULL", c.LeftColumn),
		fmt.Sprintf("%s BIGINT NOT NULL", c.RightColumn),
	}
	if c.Partitioned() {
		cols = append(cols, fmt.Sprintf("%s TEXT NOT NULL DEFAULT ''", c.GroupColumn))
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", c.Table, strings.Join(cols, ", ")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)", c.Table, c.LeftColumn, c.Table, c.LeftColumn),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)", c.Table, c.RightColumn, c.Table, c.RightColumn),
	}
	if c.Partitioned() {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)", c.Table, c.GroupColumn, c.Table, c.GroupColumn))
	}

	for _, stmt := range stmts {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Gormstore) Select(ctx context.Context, q Query) ([]Node, error) {
	return gormSelect(s.db.WithContext(ctx), s.cfg, q)
}

func (s *Gormstore) Begin(ctx context.Context) (Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormTx{db: tx, cfg: s.cfg}, nil
}

type gormTx struct {
	db  *gorm.DB
	cfg Config
}

func (t *gormTx) Select(ctx context.Context, q Query) ([]Node, error) {
	return gormSelect(t.db.WithContext(ctx), t.cfg, q)
}

func (t *gormTx) Insert(ctx context.Context, n Node) (int64, error) {
	c := t.cfg

	cols := []string{c.NameColumn, c.LeftColumn, c.RightColumn}
	args := []any{n.Name, n.Left, n.Right}
	if c.Partitioned() {
		cols = append(cols, c.GroupColumn)
		args = append(args, n.Group)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	// RETURNING is supported by both sqlite and postgres, and is the only
	// dialect-neutral way to get the assigned id back inside the open
	// transaction.
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		c.Table, strings.Join(cols, ", "), placeholders, c.IDColumn)

	var id int64
	if err := t.db.WithContext(ctx).Raw(stmt, args...).Scan(&id).Error; err != nil {
		return 0, err
	}
	return id, nil
}

func (t *gormTx) Delete(ctx context.Context, filters ...Filter) (int64, error) {
	where, args := gormWhere(t.cfg, filters)
	res := t.db.WithContext(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE %s", t.cfg.Table, where), args...)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (t *gormTx) AddDelta(ctx context.Context, f Field, delta int64, filters ...Filter) error {
	col := t.cfg.column(f)
	where, args := gormWhere(t.cfg, filters)
	args = append([]any{delta}, args...)
	return t.db.WithContext(ctx).Exec(
		fmt.Sprintf("UPDATE %s SET %s = %s + ? WHERE %s", t.cfg.Table, col, col, where),
		args...).Error
}

func (t *gormTx) Commit() error {
	return t.db.Commit().Error
}

func (t *gormTx) Rollback() error {
	return t.db.Rollback().Error
}

// record is the fixed scan target; gormSelect aliases the configured
// columns onto it.
type record struct {
	ID   int64
	Name string
	Lft  int64
	Rgt  int64
	Grp  string
}

func gormSelect(db *gorm.DB, cfg Config, q Query) ([]Node, error) {
	sel := fmt.Sprintf("%s AS id, %s AS name, %s AS lft, %s AS rgt",
		cfg.IDColumn, cfg.NameColumn, cfg.LeftColumn, cfg.RightColumn)
	if cfg.Partitioned() {
		sel += fmt.Sprintf(", %s AS grp", cfg.GroupColumn)
	}

	tx := db.Table(cfg.Table).Select(sel)
	if len(q.Filters) > 0 {
		where, args := gormWhere(cfg, q.Filters)
		tx = tx.Where(where, args...)
	}
	if q.Ordered {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		tx = tx.Order(fmt.Sprintf("%s %s", cfg.column(q.OrderBy), dir))
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var recs []record
	if err := tx.Find(&recs).Error; err != nil {
		return nil, err
	}

	nodes := make([]Node, len(recs))
	for i, r := range recs {
		nodes[i] = Node{ID: r.ID, Name: r.Name, Left: r.Lft, Right: r.Rgt, Group: r.Grp}
	}
	return nodes, nil
}

func gormWhere(cfg Config, filters []Filter) (string, []any) {
	terms := make([]string, len(filters))
	args := make([]any, len(filters))
	for i, f := range filters {
		terms[i] = fmt.Sprintf("%s %s ?", cfg.column(f.Field), f.Op)
		args[i] = f.Value
	}
	return strings.Join(terms, " AND "), args
}
