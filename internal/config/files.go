package config

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// QueryFile is a statement file below the queries directory.
type QueryFile struct {
	// Name is the path relative to the queries directory without the
	// .sql extension, using forward slashes.
	Name string
	Path string
	SQL  string
}

// ReadSchema returns the DDL at path. A directory is read as every .sql
// file below it in lexical order, joined by newlines.
func ReadSchema(path string) (string, error) {
	info, err := AppFs.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}
	if !info.IsDir() {
		data, err := afero.ReadFile(AppFs, path)
		if err != nil {
			return "", fmt.Errorf("failed to read schema: %w", err)
		}
		return string(data), nil
	}

	files, err := sqlFiles(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}
	parts := make([]string, 0, len(files))
	for _, file := range files {
		data, err := afero.ReadFile(AppFs, file)
		if err != nil {
			return "", fmt.Errorf("failed to read schema: %w", err)
		}
		parts = append(parts, strings.TrimSpace(string(data)))
	}
	return strings.Join(parts, "\n"), nil
}

// QueryFiles reads every .sql file below dir. A missing directory yields
// no files.
func QueryFiles(dir string) ([]QueryFile, error) {
	if ok, _ := afero.DirExists(AppFs, dir); !ok {
		return nil, nil
	}
	files, err := sqlFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	out := make([]QueryFile, 0, len(files))
	for _, file := range files {
		data, err := afero.ReadFile(AppFs, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read query: %w", err)
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return nil, err
		}
		out = append(out, QueryFile{
			Name: filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel))),
			Path: file,
			SQL:  strings.TrimSpace(string(data)),
		})
	}
	return out, nil
}

func sqlFiles(dir string) ([]string, error) {
	var files []string
	err := afero.Walk(AppFs, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".sql") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
