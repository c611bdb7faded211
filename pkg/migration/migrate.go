// Package migration は投稿ストアのSQLiteスキーマを連番のSQLファイルで更新する。
//
// 適用済みの版はschema_migrationsに記録し、同じ版を二度流さない。
// 各版のSQLと記録は一つのトランザクションで確定する。
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"
)

// upSuffix は適用対象とするファイルの接尾辞。down.sqlは扱わない。
const upSuffix = ".up.sql"

// ErrDuplicateVersion は同じ版番号のファイルが複数あることを表す。
var ErrDuplicateVersion = errors.New("版番号が重複しています")

// File は版番号付きのSQLファイル。
type File struct {
	// Version はファイル名先頭の連番。
	Version int
	// Name はバージョン以降の説明部分。
	Name string
	// Path はfs.FS内でのパス。
	Path string
}

// Run はdir配下のうちまだ記録のない版を昇順に流し、新たに流した件数を返す。
// 途中で失敗した場合は、それまでに確定した件数とエラーを返す。
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, dir string) (int, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)
	`); err != nil {
		return 0, fmt.Errorf("schema_migrationsを用意できません: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("記録済みの版を読めません: %w", err)
	}

	files, err := Collect(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("%s のSQLファイルを列挙できません: %w", dir, err)
	}

	count := 0
	for _, f := range files {
		if applied[f.Version] {
			continue
		}
		if err := apply(ctx, db, fsys, f); err != nil {
			return count, fmt.Errorf("版 %06d (%s) で停止: %w", f.Version, f.Name, err)
		}
		log.Printf("[Migration] 版 %06d (%s) を反映", f.Version, f.Name)
		count++
	}
	return count, nil
}

// Collect はdir直下の "NNNNNN_name.up.sql" を版番号の昇順で返す。
// 先頭が数値でないファイルは対象外とし、同じ版番号が複数あればErrDuplicateVersionを返す。
func Collect(fsys fs.FS, dir string) ([]File, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), upSuffix) {
			continue
		}
		prefix, rest, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		files = append(files, File{
			Version: version,
			Name:    strings.TrimSuffix(rest, upSuffix),
			Path:    path.Join(dir, entry.Name()),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})
	for i := 1; i < len(files); i++ {
		if files[i].Version == files[i-1].Version {
			return nil, fmt.Errorf("%w: %s と %s", ErrDuplicateVersion, files[i-1].Path, files[i].Path)
		}
	}
	return files, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// apply はfのSQLを流して版を記録する。どちらかが失敗すれば両方とも取り消す。
func apply(ctx context.Context, db *sql.DB, fsys fs.FS, f File) error {
	content, err := fs.ReadFile(fsys, f.Path)
	if err != nil {
		return fmt.Errorf("%s を読めません: %w", f.Path, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションを開始できません: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("SQLがエラーになりました: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", f.Version); err != nil {
		return fmt.Errorf("版を記録できません: %w", err)
	}
	return tx.Commit()
}
