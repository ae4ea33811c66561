package cvedb

import (
	"database/sql"
	"errors"
	"fmt"

	"NmapVulners/internal/model"
	"NmapVulners/internal/utils"

	_ "github.com/mattn/go-sqlite3"
)

// LookupCache 本次运行内的查询结果缓存，使用内存 sqlite，进程退出即丢弃
type LookupCache struct {
	db     *sql.DB
	logger *utils.Logger
}

func NewLookupCache() (*LookupCache, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("打开缓存数据库失败: %w", err)
	}
	// :memory: 每个连接是独立的库，只保留一个连接
	db.SetMaxOpenConns(1)

	cache := &LookupCache{
		db:     db,
		logger: utils.NewLogger("lookup-cache"),
	}

	if err := cache.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化缓存表失败: %w", err)
	}

	return cache, nil
}

func (lc *LookupCache) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lookups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product TEXT NOT NULL,
		version TEXT NOT NULL,
		finding_count INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (product, version)
	);

	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lookup_id INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		score REAL NOT NULL,
		score_text TEXT NOT NULL DEFAULT '',
		href TEXT NOT NULL,
		description TEXT NOT NULL,
		FOREIGN KEY (lookup_id) REFERENCES lookups(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_findings_lookup ON findings(lookup_id, idx);
	`

	_, err := lc.db.Exec(schema)
	return err
}

// Get 返回缓存的结果，ok 表示是否命中（包括无漏洞的结果）
func (lc *LookupCache) Get(product, version string) ([]model.Finding, bool, error) {
	var lookupID int64
	var count int
	err := lc.db.QueryRow(
		`SELECT id, finding_count FROM lookups WHERE product = ? AND version = ?`,
		product, version,
	).Scan(&lookupID, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if count == 0 {
		return nil, true, nil
	}

	rows, err := lc.db.Query(
		`SELECT idx, score, score_text, href, description FROM findings WHERE lookup_id = ? ORDER BY idx`,
		lookupID,
	)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	findings := make([]model.Finding, 0, count)
	for rows.Next() {
		var f model.Finding
		if err := rows.Scan(&f.Index, &f.Score, &f.ScoreText, &f.Link, &f.Description); err != nil {
			return nil, false, err
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return findings, true, nil
}

// Put 记录一次查询结果，已有记录会被替换
func (lc *LookupCache) Put(product, version string, findings []model.Finding) error {
	tx, err := lc.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		DELETE FROM findings WHERE lookup_id IN
		(SELECT id FROM lookups WHERE product = ? AND version = ?)`,
		product, version,
	)
	if err != nil {
		return err
	}
	if _, err = tx.Exec(`DELETE FROM lookups WHERE product = ? AND version = ?`, product, version); err != nil {
		return err
	}

	res, err := tx.Exec(
		`INSERT INTO lookups (product, version, finding_count) VALUES (?, ?, ?)`,
		product, version, len(findings),
	)
	if err != nil {
		return err
	}
	lookupID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, f := range findings {
		_, err = tx.Exec(`
			INSERT INTO findings (lookup_id, idx, score, score_text, href, description)
			VALUES (?, ?, ?, ?, ?, ?)`,
			lookupID, f.Index, f.Score, f.ScoreText, f.Link, f.Description,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Count 已缓存的查询数
func (lc *LookupCache) Count() (int, error) {
	var count int
	err := lc.db.QueryRow("SELECT COUNT(*) FROM lookups").Scan(&count)
	return count, err
}

func (lc *LookupCache) Close() error {
	return lc.db.Close()
}
