// Package extract turns stored application documents into plain text.
package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Extractor returns the text of a stored document. Implementations never fail:
// any problem yields an empty string.
type Extractor interface {
	Extract(ctx context.Context, ref string) string
}

// textExtensions are the document types FileExtractor reads directly.
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".text": true,
}

// FileExtractor reads plain-text documents stored under Root. Binary formats
// are left to an external extraction service and come back empty here.
type FileExtractor struct {
	Root   string
	Logger *zap.Logger
}

// NewFileExtractor returns an extractor rooted at root.
func NewFileExtractor(root string, logger *zap.Logger) *FileExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileExtractor{Root: root, Logger: logger}
}

func (f *FileExtractor) Extract(ctx context.Context, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ctx.Err() != nil {
		return ""
	}

	path, ok := f.resolve(ref)
	if !ok {
		f.Logger.Warn("document reference escapes the document root", zap.String("ref", ref))
		return ""
	}

	if !textExtensions[strings.ToLower(filepath.Ext(path))] {
		f.Logger.Debug("unsupported document type", zap.String("ref", ref))
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		f.Logger.Warn("reading document failed", zap.String("ref", ref), zap.Error(err))
		return ""
	}

	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(data)
}

func (f *FileExtractor) resolve(ref string) (string, bool) {
	root, err := filepath.Abs(f.Root)
	if err != nil {
		return "", false
	}

	path := filepath.Join(root, filepath.FromSlash(ref))
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}
