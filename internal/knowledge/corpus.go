package knowledge

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed corpus.yaml
var defaultCorpus []byte

// Article is one knowledge-base entry.
type Article struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Content string   `yaml:"content"`
	Tags    []string `yaml:"tags,omitempty"`
}

type corpusFile struct {
	Articles []Article `yaml:"articles"`
}

// ParseCorpus decodes a YAML corpus. Article ids must be unique and
// non-empty.
func ParseCorpus(data []byte) ([]Article, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing corpus: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Articles))
	for i, a := range f.Articles {
		if a.ID == "" {
			return nil, fmt.Errorf("article %d: id is required", i)
		}
		if a.Content == "" {
			return nil, fmt.Errorf("article %s: content is required", a.ID)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("article %s: duplicate id", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return f.Articles, nil
}

// LoadCorpus reads a YAML corpus from path. An empty path loads the
// built-in corpus.
func LoadCorpus(path string) ([]Article, error) {
	if path == "" {
		return DefaultCorpus(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}
	return ParseCorpus(data)
}

// DefaultCorpus returns the built-in corpus.
func DefaultCorpus() []Article {
	articles, err := ParseCorpus(defaultCorpus)
	if err != nil {
		panic(fmt.Sprintf("built-in corpus is invalid: %v", err))
	}
	return articles
}
