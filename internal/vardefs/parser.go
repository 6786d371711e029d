package vardefs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrVarDefsFile matches every FileError.
var ErrVarDefsFile = errors.New("var-defs file error")

// FileError reports a var-defs file that could not be read.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("cannot read var-defs file %q: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrVarDefsFile.
func (e *FileError) Is(target error) bool { return target == ErrVarDefsFile }

// declaration prefixes that shells accept in front of an assignment.
var keyPrefixes = []string{"export ", "declare -a ", "declare "}

// ParseFile reads and parses the var-defs file at path.
func ParseFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	table, err := Parse(f)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return table, nil
}

// Parse reads newline-separated assignments from r.
func Parse(r io.Reader) (Table, error) {
	table := make(Table)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		key, value, ok := parseLine(scanner.Text())
		if ok {
			table[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

func parseLine(line string) (string, Value, bool) {
	if strings.HasPrefix(strings.TrimSpace(line), "#") {
		return "", Value{}, false
	}
	rawKey, rawValue, found := strings.Cut(line, "=")
	if !found {
		return "", Value{}, false
	}

	key := strings.TrimSpace(rawKey)
	for _, prefix := range keyPrefixes {
		key = strings.TrimSpace(strings.TrimPrefix(key, prefix))
	}
	if key == "" {
		return "", Value{}, false
	}

	value := strings.TrimSpace(rawValue)
	if len(value) >= 2 && strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
		return key, Value{Sequence: splitItems(value[1 : len(value)-1]), IsSeq: true}, true
	}
	return key, Value{Scalar: value}, true
}

// splitItems splits the inside of a parenthesised list on whitespace. A
// matching pair of single or double quotes around an item is removed; nothing
// else is unescaped.
func splitItems(content string) []string {
	fields := strings.Fields(content)
	out := make([]string, 0, len(fields))
	for _, item := range fields {
		if item = unquote(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func unquote(item string) string {
	if len(item) >= 2 {
		first, last := item[0], item[len(item)-1]
		if first == last && (first == '"' || first == '\'') {
			return item[1 : len(item)-1]
		}
	}
	return item
}
