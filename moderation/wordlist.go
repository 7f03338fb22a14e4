package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed words/*.txt
var wordFiles embed.FS

// LoadWords reads the embedded word lists, one file per language, and
// returns the deduplicated words plus the language tags for logging.
func LoadWords() (words, languages []string, err error) {
	entries, err := fs.ReadDir(wordFiles, "words")
	if err != nil {
		return nil, nil, err
	}

	unique := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := wordFiles.ReadFile("words/" + entry.Name())
		if err != nil {
			return nil, nil, err
		}

		// Scanner handles both \n and \r\n line endings.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				unique[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, nil, err
		}
	}

	if len(unique) == 0 {
		return nil, nil, fmt.Errorf("no words have been found")
	}

	words = make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	sort.Strings(words)
	return words, languages, nil
}
