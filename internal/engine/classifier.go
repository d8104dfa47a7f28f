package engine

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Canonical pattern names. The explainer's severity cascade and likely-cause
// ordering key off these, so pattern packs overriding the taxonomy should keep
// the names stable.
const (
	PatternOutOfMemory     = "Out of memory"
	PatternDatabaseTimeout = "Database timeout"
	PatternDiskSpace       = "Disk space"
	PatternAPITimeout      = "API timeout"
	PatternHighMemory      = "High memory usage"
	PatternServiceCrash    = "Service crash"

	// PatternOther buckets messages matching no named pattern.
	PatternOther = "Other errors"
)

// ErrorPattern binds a taxonomy name to a matching predicate over message text.
type ErrorPattern struct {
	Name string
	expr *regexp.Regexp
}

// Matches tests the message against the pattern, case-insensitively.
func (p ErrorPattern) Matches(message string) bool {
	return p.expr.MatchString(message)
}

// Classifier maps raw log messages onto a fixed, ordered cause taxonomy.
// Order matters: the first matching pattern wins per message, so more specific
// patterns must precede broader ones.
type Classifier struct {
	patterns []ErrorPattern
}

// NewClassifier returns a classifier with the built-in taxonomy.
func NewClassifier() *Classifier {
	return &Classifier{patterns: defaultPatterns()}
}

// patternPackFile is the YAML root structure for taxonomy overrides.
type patternPackFile struct {
	Patterns []struct {
		Name  string `yaml:"name"`
		Regex string `yaml:"regex"`
	} `yaml:"patterns"`
}

// NewClassifierFromPack loads the taxonomy from a YAML pattern pack. An empty
// or absent path falls back to the built-in taxonomy.
func NewClassifierFromPack(path string) (*Classifier, error) {
	if path == "" {
		return NewClassifier(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewClassifier(), nil
		}
		return nil, fmt.Errorf("read pattern pack: %w", err)
	}
	var pack patternPackFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse pattern pack: %w", err)
	}
	if len(pack.Patterns) == 0 {
		return NewClassifier(), nil
	}

	patterns := make([]ErrorPattern, 0, len(pack.Patterns))
	for _, entry := range pack.Patterns {
		expr, err := regexp.Compile("(?i)" + entry.Regex)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", entry.Name, err)
		}
		patterns = append(patterns, ErrorPattern{Name: entry.Name, expr: expr})
	}
	return &Classifier{patterns: patterns}, nil
}

// Classify counts occurrences of each named pattern across the messages.
// Each message counts toward at most one pattern (first match wins); messages
// matching nothing increment PatternOther. Only patterns with a non-zero
// count appear in the result.
func (c *Classifier) Classify(messages []string) map[string]int {
	counts := make(map[string]int)
	if len(messages) == 0 {
		return counts
	}

	for _, msg := range messages {
		matched := false
		for _, pattern := range c.patterns {
			if pattern.Matches(msg) {
				counts[pattern.Name]++
				matched = true
				break
			}
		}
		if !matched {
			counts[PatternOther]++
		}
	}
	return counts
}

// PatternNames returns the taxonomy names in priority order.
func (c *Classifier) PatternNames() []string {
	names := make([]string, 0, len(c.patterns))
	for _, p := range c.patterns {
		names = append(names, p.Name)
	}
	return names
}

func defaultPatterns() []ErrorPattern {
	compile := func(name, expr string) ErrorPattern {
		return ErrorPattern{Name: name, expr: regexp.MustCompile("(?i)" + expr)}
	}
	return []ErrorPattern{
		compile(PatternOutOfMemory, `out of memory|memory error|memory exhaustion`),
		compile(PatternDatabaseTimeout, `database.*timeout|connection.*timeout|db.*timeout`),
		compile(PatternDiskSpace, `disk.*space|disk.*full|storage.*full`),
		compile(PatternAPITimeout, `api.*timeout|response.*time|slow.*query`),
		compile(PatternHighMemory, `high.*memory|memory.*usage`),
		compile(PatternServiceCrash, `service.*crash|application.*crash|process.*died`),
	}
}
