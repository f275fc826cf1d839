package site

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterFence = "---"

// FrontMatter holds the source post header fields the pipeline cares about.
type FrontMatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// SourceFrontMatter reads the front matter of the markdown source behind ref.
// It returns a zero value and no error when no source dir is configured or the
// source file is missing.
func (l *Locator) SourceFrontMatter(ref ContentRef) (FrontMatter, error) {
	if l.sourceDir == "" {
		return FrontMatter{}, nil
	}
	data, err := os.ReadFile(filepath.Join(l.sourceDir, ref.Identifier+".md"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FrontMatter{}, nil
		}
		return FrontMatter{}, fmt.Errorf("read source: %w", err)
	}
	return ParseFrontMatter(data)
}

// ParseFrontMatter decodes a leading "---" delimited YAML block.
// Documents without one yield a zero FrontMatter.
func ParseFrontMatter(data []byte) (FrontMatter, error) {
	block, ok := frontMatterBlock(data)
	if !ok {
		return FrontMatter{}, nil
	}
	var fm FrontMatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return FrontMatter{}, fmt.Errorf("parse front matter: %w", err)
	}
	fm.Title = strings.TrimSpace(fm.Title)
	return fm, nil
}

func frontMatterBlock(data []byte) ([]byte, bool) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)

	if !sc.Scan() || strings.TrimSpace(sc.Text()) != frontMatterFence {
		return nil, false
	}
	var block bytes.Buffer
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == frontMatterFence {
			return block.Bytes(), true
		}
		block.WriteString(line)
		block.WriteByte('\n')
	}
	return nil, false
}
