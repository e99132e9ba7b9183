package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/billguard/constants"
)

// collectBills expands directories into the image files beneath them and drops byte-identical
// duplicates. Files named explicitly are kept whatever their extension; intake rejects them later.
func collectBills(args []string, logger *slog.Logger) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if path != arg && isHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || constants.MimeForExt(filepath.Ext(path)) == "" {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}

	seen := map[string]string{}
	out := paths[:0]
	for _, p := range paths {
		sum, err := hashFile(p)
		if err != nil {
			// unreadable files stay in so the failure is reported per file
			out = append(out, p)
			continue
		}
		if first, dup := seen[sum]; dup {
			logger.Info("batch.file.duplicate", "path", p, "same_as", first)
			continue
		}
		seen[sum] = p
		out = append(out, p)
	}
	return out, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
