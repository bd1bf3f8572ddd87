// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package studies loads and validates extractor JSON study documents.
// Implements: prd007-analysis (R1);
//
//	docs/ARCHITECTURE § Document Loading.
package studies

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pdiddy/meta-engine/pkg/types"
)

var validate = validator.New()

// BatchSummary holds counts from a document-loading run (R1.4).
type BatchSummary struct {
	Loaded int
	Failed int
}

// Total returns the number of files processed.
func (s BatchSummary) Total() int {
	return s.Loaded + s.Failed
}

// HasFailures reports whether any documents failed to load.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// Load reads and validates one study document. Malformed JSON or a
// structurally invalid document is an error; missing numeric fields are
// not, they decode as absent.
func Load(path string) (*types.StudyDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", path, err)
	}

	var doc types.StudyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing document %s: %w", path, err)
	}
	doc.SourceFile = filepath.Base(path)

	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("validating document %s: %w", path, err)
	}
	return &doc, nil
}

// LoadAll reads every *.json file in dir. Unreadable or invalid documents
// are skipped with a progress line and counted; the batch continues (R1.4).
// Documents come back in filename order.
func LoadAll(dir string, w io.Writer) ([]*types.StudyDocument, BatchSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, BatchSummary{}, fmt.Errorf("reading input directory %s: %w", dir, err)
	}

	var docs []*types.StudyDocument
	var summary BatchSummary

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		doc, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", entry.Name(), err)
			summary.Failed++
			continue
		}

		fmt.Fprintf(w, "loaded  %s (%d effects, %d arm rows)\n",
			entry.Name(), len(doc.Effects), len(doc.Arms))
		summary.Loaded++
		docs = append(docs, doc)
	}

	return docs, summary, nil
}

// Write marshals a study document as indented JSON to path. Used by the
// imputation pass to write derived copies (prd008 R4.1).
func Write(path string, doc *types.StudyDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
