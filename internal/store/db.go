package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"suptia-engine/internal/catalog"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Ingredient{}, &Product{}, &ProductIngredient{}, &TierSnapshot{}, &JobState{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertIngredient inserts or updates an ingredient by slug.
func (d *Database) UpsertIngredient(ing catalog.Ingredient) error {
	row := NewIngredient(ing)
	if row.Slug == "" {
		return errors.New("ingredient slug or name required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "name_en", "aliases_json", "category", "evidence_level",
			"related_goals_json", "contraindications_json", "side_effects_json", "interactions_json", "updated_at",
		}),
	}).Create(&row).Error
}

// UpsertProduct inserts or updates a product and replaces its ingredient
// links. Ingredients unknown to the catalog are inserted as given; known
// ones are left untouched.
func (d *Database) UpsertProduct(p catalog.Product) error {
	row, links := NewProduct(p)
	if row.ID == "" {
		return errors.New("product id required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		for _, pi := range p.Ingredients {
			ing := NewIngredient(pi.Ingredient)
			if ing.Slug == "" {
				return fmt.Errorf("product %s: ingredient without slug or name", row.ID)
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ing).Error; err != nil {
				return fmt.Errorf("insert ingredient %s: %w", ing.Slug, err)
			}
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"slug", "name", "brand", "category", "price_jpy", "servings_per_day", "servings_per_container",
				"evidence_score", "safety_score", "price_data_json", "third_party_tested",
				"warnings_json", "references_json", "updated_at",
			}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", row.ID, err)
		}
		if err := tx.Where("product_id = ?", row.ID).Delete(&ProductIngredient{}).Error; err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		return tx.Create(&links).Error
	})
}

// LoadCatalog reads a consistent snapshot of the whole catalog. Products are
// ordered by id with ingredients in label order, and carry their stored
// tier ratings when a snapshot row exists.
func (d *Database) LoadCatalog() (catalog.Snapshot, error) {
	var snapshot catalog.Snapshot
	err := d.gorm.Transaction(func(tx *gorm.DB) error {
		var ingredients []Ingredient
		if err := tx.Order("slug ASC").Find(&ingredients).Error; err != nil {
			return fmt.Errorf("load ingredients: %w", err)
		}
		var products []Product
		if err := tx.Order("id ASC").Find(&products).Error; err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		var links []ProductIngredient
		if err := tx.Order("product_id ASC, position ASC").Find(&links).Error; err != nil {
			return fmt.Errorf("load product ingredients: %w", err)
		}
		var tiers []TierSnapshot
		if err := tx.Find(&tiers).Error; err != nil {
			return fmt.Errorf("load tier snapshots: %w", err)
		}
		snapshot = assemble(ingredients, products, links, tiers)
		return nil
	})
	if err != nil {
		return catalog.Snapshot{}, err
	}
	return snapshot, nil
}

func assemble(ingredients []Ingredient, products []Product, links []ProductIngredient, tiers []TierSnapshot) catalog.Snapshot {
	bySlug := make(map[string]catalog.Ingredient, len(ingredients))
	out := catalog.Snapshot{
		Ingredients: make([]catalog.Ingredient, 0, len(ingredients)),
		Products:    make([]catalog.Product, 0, len(products)),
	}
	for _, row := range ingredients {
		ing := row.Catalog()
		bySlug[row.Slug] = ing
		out.Ingredients = append(out.Ingredients, ing)
	}
	linksByProduct := make(map[string][]ProductIngredient)
	for _, link := range links {
		linksByProduct[link.ProductID] = append(linksByProduct[link.ProductID], link)
	}
	tierByProduct := make(map[string]TierSnapshot, len(tiers))
	for _, t := range tiers {
		tierByProduct[t.ProductID] = t
	}
	for _, row := range products {
		p := row.Catalog()
		for _, link := range linksByProduct[row.ID] {
			ing, ok := bySlug[link.IngredientSlug]
			if !ok {
				logrus.WithFields(logrus.Fields{
					"product":    row.ID,
					"ingredient": link.IngredientSlug,
				}).Warn("product references unknown ingredient")
				continue
			}
			p.Ingredients = append(p.Ingredients, catalog.ProductIngredient{
				Ingredient:         ing,
				AmountMgPerServing: link.AmountMgPerServing,
			})
		}
		if t, ok := tierByProduct[row.ID]; ok {
			ratings := t.Ratings()
			p.TierRatings = &ratings
		}
		out.Products = append(out.Products, p)
	}
	return out
}

// GetProduct loads one product with its ingredients and stored tier ratings.
func (d *Database) GetProduct(id string) (catalog.Product, error) {
	var row Product
	if err := d.gorm.First(&row, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return catalog.Product{}, ErrNotFound
		}
		return catalog.Product{}, err
	}
	var links []ProductIngredient
	if err := d.gorm.Where("product_id = ?", row.ID).Order("position ASC").Find(&links).Error; err != nil {
		return catalog.Product{}, err
	}
	slugs := make([]string, 0, len(links))
	for _, l := range links {
		slugs = append(slugs, l.IngredientSlug)
	}
	var ingredients []Ingredient
	if len(slugs) > 0 {
		if err := d.gorm.Where("slug IN ?", slugs).Find(&ingredients).Error; err != nil {
			return catalog.Product{}, err
		}
	}
	var tiers []TierSnapshot
	if err := d.gorm.Where("product_id = ?", row.ID).Find(&tiers).Error; err != nil {
		return catalog.Product{}, err
	}
	snap := assemble(ingredients, []Product{row}, links, tiers)
	return snap.Products[0], nil
}

// ListIngredients returns every catalog ingredient ordered by slug.
func (d *Database) ListIngredients() ([]catalog.Ingredient, error) {
	var rows []Ingredient
	if err := d.gorm.Order("slug ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]catalog.Ingredient, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Catalog())
	}
	return out, nil
}

// CountProducts returns the number of products.
func (d *Database) CountProducts() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Product{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountIngredients returns the number of ingredients.
func (d *Database) CountIngredients() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Ingredient{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ReplaceTierSnapshots swaps the tier_snapshots table with the provided rows.
func (d *Database) ReplaceTierSnapshots(rows []TierSnapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&TierSnapshot{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		// SQLite caps bound variables per statement.
		const batchSize = 250
		return tx.CreateInBatches(rows, batchSize).Error
	})
}

// TierQuery filters and pages stored tier snapshots.
type TierQuery struct {
	Category    string
	OverallRank string
	Offset      int
	Limit       int
}

// ListTierSnapshots returns snapshots ordered best first.
func (d *Database) ListTierSnapshots(opts TierQuery) ([]TierSnapshot, int64, error) {
	base := d.gorm.Model(&TierSnapshot{})
	if category := strings.TrimSpace(opts.Category); category != "" {
		base = base.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	if rank := strings.TrimSpace(opts.OverallRank); rank != "" {
		base = base.Where("overall_rank = ?", strings.ToUpper(rank))
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query := base.Order("overall_score DESC, product_id ASC").Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var rows []TierSnapshot
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SaveJobState inserts or updates a job state row.
func (d *Database) SaveJobState(state *JobState) error {
	if state == nil {
		return errors.New("job state is nil")
	}
	state.UpdatedAt = time.Now().UTC()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "message", "processed", "total", "last_event_json", "updated_at"}),
	}).Create(state).Error
}

// LatestJobState returns the most recently updated job, or ErrNotFound.
func (d *Database) LatestJobState() (*JobState, error) {
	var state JobState
	if err := d.gorm.Order("updated_at DESC").First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &state, nil
}

// MarkInterruptedJobs fails jobs left running by a previous process.
func (d *Database) MarkInterruptedJobs() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.Model(&JobState{}).
		Where("status = ?", "running").
		Updates(map[string]any{"status": "failed", "message": "interrupted by restart", "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_product_ingredients_product_position ON product_ingredients(product_id, position)",
		"CREATE INDEX IF NOT EXISTS idx_tier_snapshots_category_score ON tier_snapshots(category, overall_score)",
		"CREATE INDEX IF NOT EXISTS idx_job_states_status_updated ON job_states(status, updated_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
