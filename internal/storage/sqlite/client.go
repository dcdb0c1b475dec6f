package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/saasarch/constitution-service/internal/storage/models"
	"github.com/saasarch/constitution-service/pkg/logger"
)

var ErrNotFound = errors.New("record not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	// Connection options go through the DSN so every pooled connection gets
	// them. Concurrent batch evaluations append audit rows from several
	// goroutines; the busy timeout waits for the single SQLite writer
	// instead of surfacing SQLITE_BUSY.
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS principles (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		category TEXT NOT NULL,
		embedding TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_principles_category ON principles(category);
	CREATE INDEX IF NOT EXISTS idx_principles_active ON principles(is_active);

	CREATE TABLE IF NOT EXISTS tenants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT UNIQUE NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tenant_principles (
		tenant_id INTEGER NOT NULL,
		principle_id TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (tenant_id, principle_id),
		FOREIGN KEY (tenant_id) REFERENCES tenants(id),
		FOREIGN KEY (principle_id) REFERENCES principles(id)
	);

	CREATE TABLE IF NOT EXISTS evaluation_logs (
		id TEXT PRIMARY KEY,
		tenant_id INTEGER,
		action TEXT NOT NULL,
		result TEXT NOT NULL,
		overall_score REAL NOT NULL,
		compliance TEXT NOT NULL,
		principles_evaluated INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_logs_tenant ON evaluation_logs(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_logs_score ON evaluation_logs(overall_score);
	CREATE INDEX IF NOT EXISTS idx_logs_created ON evaluation_logs(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertPrinciple(p *models.Principle) error {
	embeddingJSON, err := json.Marshal(p.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	query := `
		INSERT INTO principles (id, text, category, embedding, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	active := 0
	if p.IsActive {
		active = 1
	}

	_, err = c.db.Exec(query, p.ID, p.Text, p.Category, string(embeddingJSON), active, p.CreatedAt.Unix(), p.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert principle: %w", err)
	}

	logger.Debug("Principle inserted", zap.String("principle_id", p.ID), zap.String("category", p.Category))
	return nil
}

func (c *Client) UpdatePrinciple(p *models.Principle) error {
	embeddingJSON, err := json.Marshal(p.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	query := `UPDATE principles SET text = ?, category = ?, embedding = ?, updated_at = ? WHERE id = ?`

	res, err := c.db.Exec(query, p.Text, p.Category, string(embeddingJSON), p.UpdatedAt.Unix(), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update principle: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

func (c *Client) DeactivatePrinciple(id string) error {
	res, err := c.db.Exec(`UPDATE principles SET is_active = 0, updated_at = ? WHERE id = ?`, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate principle: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	logger.Info("Principle deactivated", zap.String("principle_id", id))
	return nil
}

func (c *Client) GetPrinciple(id string) (*models.Principle, error) {
	query := `SELECT id, text, category, embedding, is_active, created_at, updated_at FROM principles WHERE id = ?`

	row := c.db.QueryRow(query, id)
	p, err := scanPrinciple(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get principle: %w", err)
	}

	return p, nil
}

func (c *Client) ListActivePrinciples() ([]models.Principle, error) {
	query := `
		SELECT id, text, category, embedding, is_active, created_at, updated_at
		FROM principles
		WHERE is_active = 1 AND embedding IS NOT NULL
		ORDER BY created_at
	`

	return c.queryPrinciples(query)
}

// ListActivePrinciplesForTenant returns principles adopted by the tenant where
// both the principle and the adoption link are active.
func (c *Client) ListActivePrinciplesForTenant(tenantID int64) ([]models.Principle, error) {
	query := `
		SELECT p.id, p.text, p.category, p.embedding, p.is_active, p.created_at, p.updated_at
		FROM principles p
		JOIN tenant_principles tp ON tp.principle_id = p.id
		WHERE tp.tenant_id = ? AND tp.is_active = 1 AND p.is_active = 1 AND p.embedding IS NOT NULL
		ORDER BY p.created_at
	`

	return c.queryPrinciples(query, tenantID)
}

func (c *Client) queryPrinciples(query string, args ...interface{}) ([]models.Principle, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query principles: %w", err)
	}
	defer rows.Close()

	var principles []models.Principle
	for rows.Next() {
		p, err := scanPrinciple(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan principle: %w", err)
		}
		principles = append(principles, *p)
	}

	return principles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrinciple(row rowScanner) (*models.Principle, error) {
	var p models.Principle
	var embeddingJSON sql.NullString
	var active int
	var createdAt, updatedAt int64

	err := row.Scan(&p.ID, &p.Text, &p.Category, &embeddingJSON, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &p.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}

	p.IsActive = active == 1
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)

	return &p, nil
}

func (c *Client) InsertTenant(t *models.Tenant) error {
	res, err := c.db.Exec(
		`INSERT INTO tenants (name, slug, is_active, created_at) VALUES (?, ?, 1, ?)`,
		t.Name, t.Slug, t.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tenant: %w", err)
	}

	t.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read tenant id: %w", err)
	}

	logger.Info("Tenant created", zap.Int64("tenant_id", t.ID), zap.String("slug", t.Slug))
	return nil
}

func (c *Client) GetTenant(id int64) (*models.Tenant, error) {
	var t models.Tenant
	var active int
	var createdAt int64

	err := c.db.QueryRow(`SELECT id, name, slug, is_active, created_at FROM tenants WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Slug, &active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	t.IsActive = active == 1
	t.CreatedAt = time.Unix(createdAt, 0)

	return &t, nil
}

func (c *Client) DeactivateTenant(id int64) error {
	res, err := c.db.Exec(`UPDATE tenants SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate tenant: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

func (c *Client) AdoptPrinciple(tenantID int64, principleID string) error {
	query := `
		INSERT INTO tenant_principles (tenant_id, principle_id, is_active, created_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(tenant_id, principle_id) DO UPDATE SET is_active = 1
	`

	_, err := c.db.Exec(query, tenantID, principleID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to adopt principle: %w", err)
	}

	logger.Info("Principle adopted", zap.Int64("tenant_id", tenantID), zap.String("principle_id", principleID))
	return nil
}

func (c *Client) RevokePrinciple(tenantID int64, principleID string) error {
	res, err := c.db.Exec(
		`UPDATE tenant_principles SET is_active = 0 WHERE tenant_id = ? AND principle_id = ?`,
		tenantID, principleID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke principle: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

func (c *Client) InsertEvaluationLog(log *models.EvaluationLog) error {
	query := `
		INSERT INTO evaluation_logs (id, tenant_id, action, result, overall_score, compliance,
			principles_evaluated, duration_ms, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		log.ID,
		log.TenantID,
		log.Action,
		log.ResultJSON,
		log.OverallScore,
		log.Compliance,
		log.PrinciplesEvaluated,
		log.DurationMS,
		log.MetadataJSON,
		log.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert evaluation log: %w", err)
	}

	logger.Debug("Evaluation logged",
		zap.String("log_id", log.ID),
		zap.Float64("overall_score", log.OverallScore),
		zap.String("compliance", log.Compliance),
	)

	return nil
}

func (c *Client) GetEvaluationLog(id string) (*models.EvaluationLog, error) {
	query := `
		SELECT id, tenant_id, action, result, overall_score, compliance,
			principles_evaluated, duration_ms, metadata, created_at
		FROM evaluation_logs WHERE id = ?
	`

	var log models.EvaluationLog
	var tenantID sql.NullInt64
	var metadata sql.NullString
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(
		&log.ID, &tenantID, &log.Action, &log.ResultJSON, &log.OverallScore,
		&log.Compliance, &log.PrinciplesEvaluated, &log.DurationMS, &metadata, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation log: %w", err)
	}

	if tenantID.Valid {
		log.TenantID = &tenantID.Int64
	}
	log.MetadataJSON = metadata.String
	log.CreatedAt = time.Unix(createdAt, 0)

	return &log, nil
}

func (c *Client) DeleteEvaluationLog(id string) error {
	res, err := c.db.Exec(`DELETE FROM evaluation_logs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete evaluation log: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	logger.Info("Evaluation log deleted", zap.String("log_id", id))
	return nil
}

func (c *Client) ListEvaluationLogs(filter models.LogFilter) ([]models.EvaluationLog, error) {
	query := `
		SELECT id, tenant_id, action, result, overall_score, compliance,
			principles_evaluated, duration_ms, metadata, created_at
		FROM evaluation_logs
	`

	where, args := buildLogFilter(filter)
	query += where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluation logs: %w", err)
	}
	defer rows.Close()

	var logs []models.EvaluationLog
	for rows.Next() {
		var log models.EvaluationLog
		var tenantID sql.NullInt64
		var metadata sql.NullString
		var createdAt int64

		err := rows.Scan(
			&log.ID, &tenantID, &log.Action, &log.ResultJSON, &log.OverallScore,
			&log.Compliance, &log.PrinciplesEvaluated, &log.DurationMS, &metadata, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation log: %w", err)
		}

		if tenantID.Valid {
			log.TenantID = &tenantID.Int64
		}
		log.MetadataJSON = metadata.String
		log.CreatedAt = time.Unix(createdAt, 0)

		logs = append(logs, log)
	}

	return logs, rows.Err()
}

func (c *Client) LogStats(filter models.LogFilter) (*models.LogStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(AVG(overall_score), 0), COALESCE(MIN(overall_score), 0), COALESCE(MAX(overall_score), 0)
		FROM evaluation_logs
	`

	where, args := buildLogFilter(filter)
	query += where

	var stats models.LogStats
	err := c.db.QueryRow(query, args...).Scan(&stats.Total, &stats.AverageScore, &stats.MinScore, &stats.MaxScore)
	if err != nil {
		return nil, fmt.Errorf("failed to compute log stats: %w", err)
	}

	return &stats, nil
}

func buildLogFilter(filter models.LogFilter) (string, []interface{}) {
	where := ""
	var args []interface{}

	appendClause := func(clause string, arg interface{}) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, arg)
	}

	if filter.TenantID != nil {
		appendClause("tenant_id = ?", *filter.TenantID)
	}
	if filter.MinScore != nil {
		appendClause("overall_score >= ?", *filter.MinScore)
	}
	if filter.MaxScore != nil {
		appendClause("overall_score <= ?", *filter.MaxScore)
	}

	return where, args
}

func (c *Client) ScoreDistribution(tenantID *int64, days int) (*models.ScoreDistribution, error) {
	query := `
		SELECT
			SUM(CASE WHEN overall_score >= 0.9 THEN 1 ELSE 0 END),
			SUM(CASE WHEN overall_score >= 0.7 AND overall_score < 0.9 THEN 1 ELSE 0 END),
			SUM(CASE WHEN overall_score >= 0.5 AND overall_score < 0.7 THEN 1 ELSE 0 END),
			SUM(CASE WHEN overall_score < 0.5 THEN 1 ELSE 0 END)
		FROM evaluation_logs
		WHERE created_at >= ?
	`

	args := []interface{}{time.Now().AddDate(0, 0, -days).Unix()}
	if tenantID != nil {
		query += ` AND tenant_id = ?`
		args = append(args, *tenantID)
	}

	var excellent, good, fair, poor sql.NullInt64
	err := c.db.QueryRow(query, args...).Scan(&excellent, &good, &fair, &poor)
	if err != nil {
		return nil, fmt.Errorf("failed to compute score distribution: %w", err)
	}

	return &models.ScoreDistribution{
		Excellent: int(excellent.Int64),
		Good:      int(good.Int64),
		Fair:      int(fair.Int64),
		Poor:      int(poor.Int64),
	}, nil
}

func (c *Client) DailyStats(tenantID *int64, days int) ([]models.DailyStat, error) {
	query := `
		SELECT date(created_at, 'unixepoch'), COUNT(*), AVG(overall_score)
		FROM evaluation_logs
		WHERE created_at >= ?
	`

	args := []interface{}{time.Now().AddDate(0, 0, -days).Unix()}
	if tenantID != nil {
		query += ` AND tenant_id = ?`
		args = append(args, *tenantID)
	}

	query += ` GROUP BY date(created_at, 'unixepoch') ORDER BY date(created_at, 'unixepoch')`

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DailyStat
	for rows.Next() {
		var s models.DailyStat
		if err := rows.Scan(&s.Day, &s.Count, &s.AverageScore); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}
