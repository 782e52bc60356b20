package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/spf13/afero"
)

// DefaultPropertiesFile is the conventional name of the untracked local
// configuration file.
const DefaultPropertiesFile = "local.properties"

const maxLineSize = 1 << 20

var (
	// ErrMalformedLine is matched by every *ParseError.
	ErrMalformedLine = errors.New("malformed property line")
)

// ParseError identifies the offending line of a properties file.
type ParseError struct {
	Path   string
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.Path, e.Line, e.Reason, e.Text)
}

// Unwrap allows errors.Is(err, ErrMalformedLine).
func (e *ParseError) Unwrap() error {
	return ErrMalformedLine
}

// Properties is a source backed by a parsed key=value file.
type Properties struct {
	path   string
	values map[string]string
}

// LoadPropertiesFile reads and parses the file at path. A missing file yields
// an empty source. Any other I/O failure or a malformed line is returned as an
// error and no values are kept.
func LoadPropertiesFile(fs afero.Fs, path string) (*Properties, error) {
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Properties{path: path, values: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("open properties file: %w", err)
	}
	defer f.Close()

	values, err := ParseProperties(f, path)
	if err != nil {
		return nil, err
	}
	return &Properties{path: path, values: values}, nil
}

// Name implements Source.
func (p *Properties) Name() string {
	return p.path
}

// Lookup implements Source.
func (p *Properties) Lookup(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Path returns the file the values were read from.
func (p *Properties) Path() string {
	return p.path
}

// Keys returns the defined keys in sorted order.
func (p *Properties) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseProperties decodes properties text. name is only used in errors.
//
// Lines starting with '#' or '!' are comments. Keys and values are split on
// the first unescaped '='; a line with an odd number of trailing backslashes
// continues on the next line. Later definitions of a key replace earlier ones.
func ParseProperties(r io.Reader, name string) (map[string]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	values := make(map[string]string)

	var (
		logical    strings.Builder
		continuing bool
		startLine  int
		lineNo     int
	)

	flush := func() error {
		key, value, err := splitEntry(logical.String())
		if err != nil {
			return &ParseError{Path: name, Line: startLine, Text: logical.String(), Reason: err.Error()}
		}
		values[key] = value
		logical.Reset()
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		line = strings.TrimLeft(line, " \t\f")

		if !continuing {
			if line == "" || line[0] == '#' || line[0] == '!' {
				continue
			}
			startLine = lineNo
		}

		if trailingBackslashes(line)%2 == 1 {
			logical.WriteString(line[:len(line)-1])
			continuing = true
			continue
		}

		logical.WriteString(line)
		continuing = false
		if err := flush(); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if continuing {
		if err := flush(); err != nil {
			return nil, err
		}
	}

	return values, nil
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

func splitEntry(line string) (string, string, error) {
	sep := -1
	for i := 0; i < len(line); i++ {
		if line[i] == '\\' {
			i++
			continue
		}
		if line[i] == '=' {
			sep = i
			break
		}
	}
	if sep < 0 {
		return "", "", errors.New("missing '=' separator")
	}

	key, err := unescape(trimUnescapedRight(line[:sep]))
	if err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", errors.New("empty key")
	}

	value, err := unescape(strings.TrimLeft(line[sep+1:], " \t\f"))
	if err != nil {
		return "", "", err
	}
	return key, value, nil
}

// trimUnescapedRight drops trailing whitespace that is not preceded by an
// escaping backslash, so a key written as `a\ ` keeps its space.
func trimUnescapedRight(s string) string {
	for len(s) > 0 {
		last := s[len(s)-1]
		if last != ' ' && last != '\t' && last != '\f' {
			break
		}
		if trailingBackslashes(s[:len(s)-1])%2 == 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			r, err := decodeUnicodeEscape(s, i-1)
			if err != nil {
				return "", err
			}
			i += 4
			if utf16.IsSurrogate(r) && strings.HasPrefix(s[i+1:], `\u`) {
				if low, err := decodeUnicodeEscape(s, i+1); err == nil {
					if pair := utf16.DecodeRune(r, low); pair != unicode.ReplacementChar {
						r = pair
						i += 6
					}
				}
			}
			b.WriteRune(r)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

// decodeUnicodeEscape reads the \uXXXX escape starting at s[at].
func decodeUnicodeEscape(s string, at int) (rune, error) {
	if at+6 > len(s) {
		return 0, fmt.Errorf("invalid unicode escape %q", s[at:])
	}
	code, err := strconv.ParseUint(s[at+2:at+6], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid unicode escape %q", s[at:at+6])
	}
	return rune(code), nil
}
