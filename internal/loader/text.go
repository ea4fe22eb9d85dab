package loader

import (
	"bufio"
	"io"
	"strings"

	"github.com/siwzmap/siwzmap/internal/document"
)

// TextLoader handles plain text files. Blank lines separate blocks.
type TextLoader struct{}

func (l *TextLoader) Load(r io.Reader, filename string) ([]document.Block, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var b blockBuilder
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			b.add(current.String(), 1, nil, "")
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b.result(), nil
}
