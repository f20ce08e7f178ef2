package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"imagevault/internal/metadata"
)

var indexNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var columns = map[string]string{
	metadata.FieldImageID:   "images.id",
	metadata.FieldOwnerID:   "images.user_id",
	metadata.FieldCategory:  "images.category",
	metadata.FieldIsPublic:  "images.is_public",
	metadata.FieldFilename:  "images.filename",
	metadata.FieldCreatedAt: "images.created_at",
}

// Store pages by ascending image id. The token holds the last id served.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Put(ctx context.Context, rec *metadata.Record) error {
	row := rowFromRecord(rec)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&row).Error; err != nil {
			return fmt.Errorf("insert image row: %w", err)
		}
		if err := tx.Where("image_id = ?", row.ID).Delete(&ImageTag{}).Error; err != nil {
			return fmt.Errorf("reset tags: %w", err)
		}
		tags := make([]ImageTag, 0, len(rec.Tags))
		seen := make(map[string]bool, len(rec.Tags))
		for _, t := range rec.Tags {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			tags = append(tags, ImageTag{ImageID: row.ID, Tag: t})
		}
		if len(tags) > 0 {
			if err := tx.Create(&tags).Error; err != nil {
				return fmt.Errorf("insert tags: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context, id string) (*metadata.Record, error) {
	var row ImageRow
	err := s.db.WithContext(ctx).Preload("Tags").Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, metadata.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch image row: %w", err)
	}
	rec := row.record()
	return &rec, nil
}

// Delete removes the tags (children first) and then the row. A missing row
// is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", id).Delete(&ImageTag{}).Error; err != nil {
			return fmt.Errorf("delete tags: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&ImageRow{}).Error; err != nil {
			return fmt.Errorf("delete image row: %w", err)
		}
		return nil
	})
}

// Query walks the given index with an owner equality. SQLite fails the
// statement when the index does not exist.
func (s *Store) Query(ctx context.Context, index, ownerID string, filter metadata.Filter, limit int, token string) (metadata.Page, error) {
	if !indexNamePattern.MatchString(index) {
		return metadata.Page{}, fmt.Errorf("invalid index name %q", index)
	}
	q := s.db.WithContext(ctx).
		Table("images INDEXED BY "+index).
		Where("images.user_id = ?", ownerID)
	return s.page(q, filter, limit, token)
}

func (s *Store) Scan(ctx context.Context, filter metadata.Filter, limit int, token string) (metadata.Page, error) {
	return s.page(s.db.WithContext(ctx).Table("images"), filter, limit, token)
}

func (s *Store) page(q *gorm.DB, filter metadata.Filter, limit int, token string) (metadata.Page, error) {
	for _, c := range filter {
		sql, arg, err := clauseSQL(c)
		if err != nil {
			return metadata.Page{}, err
		}
		q = q.Where(sql, arg)
	}
	if after := metadata.DecodeToken(token)[metadata.FieldImageID]; after != "" {
		q = q.Where("images.id > ?", after)
	}

	var rows []ImageRow
	if err := q.Preload("Tags").Order("images.id ASC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return metadata.Page{}, fmt.Errorf("list images: %w", err)
	}

	var page metadata.Page
	if len(rows) > limit {
		rows = rows[:limit]
		page.NextToken = metadata.EncodeToken(map[string]string{metadata.FieldImageID: rows[len(rows)-1].ID})
	}
	page.Items = make([]metadata.Record, len(rows))
	for i := range rows {
		page.Items[i] = rows[i].record()
	}
	return page, nil
}

func clauseSQL(c metadata.Clause) (string, any, error) {
	if c.Field == metadata.FieldTags {
		if c.Op != metadata.OpContains {
			return "", nil, fmt.Errorf("unsupported operator %s on tags", c.Op)
		}
		return "EXISTS (SELECT 1 FROM image_tags t WHERE t.image_id = images.id AND t.tag = ?)", c.Value, nil
	}

	col, ok := columns[c.Field]
	if !ok {
		return "", nil, fmt.Errorf("unknown filter field %q", c.Field)
	}
	v := c.Value
	if t, isTime := v.(time.Time); isTime {
		v = t.UTC().Format(metadata.TimeLayout)
	}

	switch c.Op {
	case metadata.OpEqual:
		return col + " = ?", v, nil
	case metadata.OpSubstring, metadata.OpContains:
		return "instr(" + col + ", ?) > 0", v, nil
	case metadata.OpAtLeast:
		return col + " >= ?", v, nil
	case metadata.OpAtMost:
		return col + " <= ?", v, nil
	}
	return "", nil, fmt.Errorf("unsupported operator %s", c.Op)
}

type indexListRow struct {
	Name   string
	Origin string
}

// DescribeIndexes reports the indexes on images with their leading column.
// Automatic indexes (origin "pk" or "u") are skipped.
func (s *Store) DescribeIndexes(ctx context.Context) ([]metadata.IndexInfo, error) {
	db := s.db.WithContext(ctx)

	var rows []indexListRow
	if err := db.Raw("SELECT name, origin FROM pragma_index_list(?)", ImageRow{}.TableName()).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("read indexes: %w", err)
	}

	infos := make([]metadata.IndexInfo, 0, len(rows))
	for _, row := range rows {
		if row.Origin != "c" || strings.HasPrefix(row.Name, "sqlite_autoindex") {
			continue
		}
		var cols []string
		if err := db.Raw("SELECT name FROM pragma_index_info(?) ORDER BY seqno", row.Name).Scan(&cols).Error; err != nil {
			return nil, fmt.Errorf("read columns of index %s: %w", row.Name, err)
		}
		if len(cols) == 0 {
			continue
		}
		infos = append(infos, metadata.IndexInfo{Name: row.Name, PartitionKey: cols[0]})
	}
	return infos, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
