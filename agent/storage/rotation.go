package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// RotateDatabase renames a SQLite file that failed schema initialization so
// a fresh database can be created in its place. WAL and SHM side files move
// with it. Example: printwatch.db -> printwatch.db.backup.2025-11-06T14-59-31
func RotateDatabase(dbPath string) (string, error) {
	if dbPath == "" || dbPath == memoryPath {
		return "", fmt.Errorf("cannot rotate in-memory database")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return "", fmt.Errorf("database file does not exist: %s", dbPath)
	}

	timestamp := time.Now().Format("2006-01-02T15-04-05")
	backupPath := fmt.Sprintf("%s.backup.%s", dbPath, timestamp)

	if err := os.Rename(dbPath, backupPath); err != nil {
		return "", fmt.Errorf("failed to rename database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		side := dbPath + suffix
		if _, err := os.Stat(side); err == nil {
			_ = os.Rename(side, fmt.Sprintf("%s%s.backup.%s", dbPath, suffix, timestamp))
		}
	}
	return backupPath, nil
}

// CleanupOldBackups removes rotated database files, keeping the keepCount
// most recent.
func CleanupOldBackups(dbPath string, keepCount int) error {
	if dbPath == "" || dbPath == memoryPath {
		return nil
	}
	if keepCount < 0 {
		keepCount = 0
	}

	pattern := filepath.Join(filepath.Dir(dbPath), filepath.Base(dbPath)+".backup.*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("failed to find backup files: %w", err)
	}
	if len(matches) <= keepCount {
		return nil
	}

	type backupFile struct {
		path    string
		modTime time.Time
	}
	backups := make([]backupFile, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		backups = append(backups, backupFile{path: match, modTime: info.ModTime()})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].modTime.After(backups[j].modTime) })

	var removed int
	for i := keepCount; i < len(backups); i++ {
		if err := os.Remove(backups[i].path); err != nil {
			logWarn("Failed to remove old backup", "path", backups[i].path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logInfo("Cleaned up old database backups", "removed", removed, "kept", keepCount)
	}
	return nil
}
