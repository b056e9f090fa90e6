package kbconn

import (
	"context"
	"encoding/csv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/kbdoc"
	"github.com/jmgress/smartrecover/internal/similarity"
	"gopkg.in/yaml.v3"
)

// Mock is the CSV-plus-markdown-directory KnowledgeBaseConnector (spec
// §4.4): a confluence_docs.csv fixture and/or a directory of .md/.txt files
// with optional YAML front-matter specifying title/tags.
type Mock struct {
	docs []kbdoc.Document
}

type frontMatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// NewMock loads docsCSV (if non-empty) and every .md/.txt file directly
// under docsDir (if non-empty).
func NewMock(docsCSV, docsDir string) (*Mock, error) {
	var docs []kbdoc.Document

	if docsCSV != "" {
		fromCSV, err := loadDocsCSV(docsCSV)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fromCSV...)
	}
	if docsDir != "" {
		fromDir, err := loadDocsDir(docsDir)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fromDir...)
	}
	return &Mock{docs: docs}, nil
}

func loadDocsCSV(path string) ([]kbdoc.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigError, "open knowledge base CSV", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil { // header: doc_id,title,content,tags,incident_ids
		return nil, apperr.Wrap(apperr.ConfigError, "read knowledge base CSV header", err)
	}

	var out []kbdoc.Document
	for {
		row, rerr := r.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return out, apperr.Wrap(apperr.ConfigError, "read knowledge base CSV row", rerr)
		}
		for len(row) < 5 {
			row = append(row, "")
		}
		doc := kbdoc.Document{
			DocID:   strings.TrimSpace(row[0]),
			Title:   row[1],
			Content: row[2],
		}
		if t := strings.TrimSpace(row[3]); t != "" {
			doc.Tags = strings.Split(t, "|")
		}
		if ids := strings.TrimSpace(row[4]); ids != "" {
			doc.IncidentIDs = strings.Split(ids, "|")
		}
		out = append(out, doc)
	}
	return out, nil
}

func loadDocsDir(dir string) ([]kbdoc.Document, error) {
	var out []kbdoc.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc := parseFrontMatterDoc(filepath.Base(path), string(raw))
		out = append(out, doc)
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigError, "walk knowledge base docs dir", err)
	}
	return out, nil
}

// parseFrontMatterDoc splits a leading "---\n...\n---\n" YAML block, if
// present, from the document body.
func parseFrontMatterDoc(filename, raw string) kbdoc.Document {
	doc := kbdoc.Document{DocID: strings.TrimSuffix(filename, filepath.Ext(filename))}

	body := raw
	if strings.HasPrefix(raw, "---\n") {
		if end := strings.Index(raw[4:], "\n---"); end >= 0 {
			fmRaw := raw[4 : end+4]
			rest := raw[end+4+4:]
			var fm frontMatter
			if err := yaml.Unmarshal([]byte(fmRaw), &fm); err == nil {
				doc.Title = fm.Title
				doc.Tags = fm.Tags
			}
			body = strings.TrimLeft(rest, "\n")
		}
	}
	doc.Content = body
	if doc.Title == "" {
		doc.Title = firstHeading(body, doc.DocID)
	}
	return doc
}

func firstHeading(body, fallback string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
		if line != "" {
			return line
		}
	}
	return fallback
}

// Search ranks docs by keyword overlap (spec §4.2 Knowledge-base agent):
// plain (unweighted) Jaccard between queryTerms and each doc's title+content+tags.
func (m *Mock) Search(ctx context.Context, queryTerms []string, k int) ([]kbdoc.Document, error) {
	query := similarity.SetOf(queryTerms)

	type scored struct {
		doc   kbdoc.Document
		score float64
	}
	var candidates []scored
	for _, d := range m.docs {
		text := similarity.Tokenize(d.Title + " " + d.Content + " " + strings.Join(d.Tags, " "))
		score := similarity.Jaccard(query, text)
		if score > 0 {
			candidates = append(candidates, scored{doc: d, score: score})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].doc.DocID < candidates[j].doc.DocID
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]kbdoc.Document, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.doc)
	}
	return out, nil
}

func (m *Mock) Get(ctx context.Context, docID string) (kbdoc.Document, error) {
	for _, d := range m.docs {
		if d.DocID == docID {
			return d, nil
		}
	}
	return kbdoc.Document{}, apperr.New(apperr.NotFound, "knowledge document "+docID+" not found")
}
