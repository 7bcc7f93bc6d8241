package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"ctfd_ip_scan/internal/logging"
)

// ErrEmptyFile is returned for an input file without even a header line.
var ErrEmptyFile = errors.New("empty file")

// Warning is a non-fatal problem met while loading a file.
type Warning struct {
	File    string
	Line    int // 0 for file level warnings
	Message string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", w.File, w.Line, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.File, w.Message)
}

// Warnings collects load warnings and logs each one as it is added.
type Warnings []Warning

func (ws *Warnings) add(file string, line int, format string, args ...any) {
	w := Warning{File: file, Line: line, Message: fmt.Sprintf(format, args...)}
	*ws = append(*ws, w)
	logging.Warn().Str("file", file).Int("line", line).Msg(w.Message)
}

// table is a header-indexed CSV file.
type table struct {
	path   string
	header map[string]int
	rows   [][]string
	lines  []int
}

// has reports whether the header contains col.
func (t *table) has(col string) bool {
	_, ok := t.header[col]
	return ok
}

// get returns the trimmed cell of column col in row i, "" when the column is absent.
func (t *table) get(i int, col string) string {
	pos, ok := t.header[col]
	if !ok || pos >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][pos])
}

// readTable reads a CSV file, detecting its encoding and delimiter. Rows whose field
// count does not match the header are skipped with a warning.
func readTable(path string, warnings *Warnings) (*table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}

	t := &table{path: path, header: make(map[string]int, len(head))}
	for i, col := range head {
		col = strings.ToLower(strings.TrimSpace(col))
		if _, dup := t.header[col]; !dup {
			t.header[col] = i
		}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				warnings.add(path, perr.Line, "unparseable row skipped: %v", perr.Err)
				continue
			}
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) != len(head) {
			warnings.add(path, line, "row has %d fields, header has %d; skipped", len(record), len(head))
			continue
		}
		t.rows = append(t.rows, record)
		t.lines = append(t.lines, line)
	}

	return t, nil
}

// decode returns UTF-8 text without BOM. Input that is not valid UTF-8 is taken as GBK,
// the other encoding spreadsheet exports commonly use.
func decode(raw []byte) ([]byte, error) {
	var dec transform.Transformer
	if utf8.Valid(raw) {
		dec = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	} else {
		dec = simplifiedchinese.GBK.NewDecoder()
	}
	out, _, err := transform.Bytes(dec, raw)
	return out, err
}

// sniffDelimiter picks the candidate delimiter occurring most often, outside quotes,
// on the header line. Comma wins ties and empty headers.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}

	candidates := []rune{',', ';', '\t', '|'}
	counts := make(map[rune]int, len(candidates))
	inQuotes := false
	for _, r := range string(first) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best := ','
	for _, c := range candidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
