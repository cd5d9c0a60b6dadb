package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/claimflow/internal/retrieval"
)

var ingestReset bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-dir>...",
	Short: "Load policy documents into the policy index",
	Long: `Index policy wording so claims can be matched to a policy when no
policy record is found in the claims database.

Each .md or .txt file may start with YAML front matter giving its
metadata:

  ---
  policy_type: motor
  policy_name: Comprehensive Motor Cover
  policy_number: MI-GEN-2024
  sum_insured: 500000
  deductible: 2500
  coverages: [own damage, third party, theft]
  exclusions: [drunk driving, racing]
  ---

Files are chunked and replace any earlier version with the same ID
(policy_number, else the file name).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "Remove all indexed documents first")
}

func runIngest(cmd *cobra.Command, args []string) error {
	files, err := collectDocuments(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .md or .txt files found")
	}

	index, err := openIndex(cfg.Retrieval)
	if err != nil {
		return err
	}
	defer index.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if ingestReset {
		if err := index.Reset(ctx); err != nil {
			return err
		}
		printStatus(out, "✓", "Cleared "+index.Path(), color.FgGreen)
	}

	var chunks, failed int
	for _, path := range files {
		doc, err := readDocument(path)
		if err != nil {
			failed++
			printStatus(out, "✗", fmt.Sprintf("%s: %v", path, err), color.FgRed)
			continue
		}
		n, err := index.AddDocument(ctx, doc)
		if err != nil {
			failed++
			printStatus(out, "✗", fmt.Sprintf("%s: %v", path, err), color.FgRed)
			continue
		}
		chunks += n
		printStatus(out, "✓", fmt.Sprintf("%s (%s, %d chunks)", doc.ID, doc.Metadata[retrieval.MetaPolicyType], n), color.FgGreen)
	}

	total, err := index.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nIndexed %s chunks from %d files; %s chunks in %s\n",
		humanize.Comma(int64(chunks)), len(files)-failed, humanize.Comma(int64(total)), index.Path())
	if cfg.Retrieval.EmbedProvider == "" || cfg.Retrieval.EmbedProvider == "none" {
		color.New(color.Faint).Fprintln(out, "Embeddings are off; search uses keyword ranking only.")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

// collectDocuments expands directories into the .md and .txt files under
// them. Files named directly are kept whatever their extension.
func collectDocuments(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".md", ".txt":
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func readDocument(path string) (retrieval.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return retrieval.Document{}, err
	}
	meta, body, err := splitFrontMatter(data)
	if err != nil {
		return retrieval.Document{}, err
	}

	base := filepath.Base(path)
	meta[retrieval.MetaFilename] = base
	id := meta[retrieval.MetaPolicyNumber]
	if id == "" {
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if strings.TrimSpace(body) == "" {
		return retrieval.Document{}, fmt.Errorf("document has no text")
	}
	return retrieval.Document{ID: id, Text: body, Metadata: meta}, nil
}

// splitFrontMatter separates a leading "---" YAML block from the body.
// List values are joined with commas, which is how the policy resolver
// reads them back.
func splitFrontMatter(data []byte) (map[string]string, string, error) {
	meta := make(map[string]string)
	text := string(bytes.TrimPrefix(data, []byte("\ufeff")))
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return meta, text, nil
	}

	rest := text[strings.Index(text, "\n")+1:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, "", fmt.Errorf("unterminated front matter")
	}
	header := rest[:end]
	body := rest[end+len("\n---"):]
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(header), &raw); err != nil {
		return nil, "", fmt.Errorf("parse front matter: %w", err)
	}
	for k, v := range raw {
		meta[k] = scalarString(v)
	}
	if pt := meta[retrieval.MetaPolicyType]; pt != "" {
		meta[retrieval.MetaPolicyType] = strings.ToLower(pt)
	}
	return meta, body, nil
}
