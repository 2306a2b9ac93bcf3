package search

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed faqs.md
var defaultFAQs []byte

// Defaults returns the FAQ set shipped with the binary.
func Defaults() []Entry {
	entries, err := ParseMarkdown(bytes.NewReader(defaultFAQs))
	if err != nil {
		panic(fmt.Sprintf("search: embedded faqs.md: %v", err))
	}
	return entries
}

// LoadMarkdown reads FAQ entries from the Markdown file at path.
func LoadMarkdown(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseMarkdown(f)
}

// ParseMarkdown reads FAQ entries in this layout:
//
//	## Question text?
//	Answer text, possibly over several lines.
//	keywords: first, second phrase
//	category: pricing
//	context: home, services
//
// Lines before the first heading are ignored. The metadata lines are
// optional; category defaults to "general".
func ParseMarkdown(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		out    []Entry
		cur    *Entry
		answer []string
		lineNo int
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		cur.Answer = strings.Join(answer, " ")
		if cur.Answer == "" {
			return fmt.Errorf("line %d: question %q has no answer", lineNo, cur.Question)
		}
		if cur.Category == "" {
			cur.Category = "general"
		}
		out = append(out, *cur)
		cur, answer = nil, nil
		return nil
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if q, ok := strings.CutPrefix(line, "## "); ok {
			if err := flush(); err != nil {
				return nil, err
			}
			cur = &Entry{Question: strings.TrimSpace(q)}
			continue
		}
		if cur == nil || line == "" {
			continue
		}
		if key, val, ok := metadata(line); ok {
			switch key {
			case "keywords":
				cur.Keywords = splitList(val)
			case "category":
				cur.Category = val
			case "context":
				cur.Contexts = splitList(val)
			}
			continue
		}
		answer = append(answer, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func metadata(line string) (key, val string, ok bool) {
	key, val, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	switch key {
	case "keywords", "category", "context":
		return key, strings.TrimSpace(val), true
	}
	return "", "", false
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
