package source

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProperties(t *testing.T) {
	tests := map[string]struct {
		input string
		want  map[string]string
	}{
		"simple_entry": {
			input: "GOOGLE_MAPS_API_KEY=FileKeyABC\n",
			want:  map[string]string{"GOOGLE_MAPS_API_KEY": "FileKeyABC"},
		},
		"comments_and_blank_lines": {
			input: "# generated by flutter\n\n! legacy comment\nflutter.sdk=/opt/flutter\n",
			want:  map[string]string{"flutter.sdk": "/opt/flutter"},
		},
		"whitespace_around_separator": {
			input: "  key   =   value with trailing  \n",
			want:  map[string]string{"key": "value with trailing  "},
		},
		"empty_value_is_kept": {
			input: "GOOGLE_MAPS_API_KEY=\n",
			want:  map[string]string{"GOOGLE_MAPS_API_KEY": ""},
		},
		"value_containing_separator": {
			input: "url=https://example.com/?a=b\n",
			want:  map[string]string{"url": "https://example.com/?a=b"},
		},
		"windows_escapes": {
			input: `sdk.dir=C\:\\Users\\dev\\Android\\sdk` + "\r\n",
			want:  map[string]string{"sdk.dir": `C:\Users\dev\Android\sdk`},
		},
		"escaped_equals_in_key": {
			input: `a\=b=c` + "\n",
			want:  map[string]string{"a=b": "c"},
		},
		"unicode_escape": {
			input: `greeting=caf\u00e9` + "\n",
			want:  map[string]string{"greeting": "café"},
		},
		"line_continuation": {
			input: "list=one, \\\n    two, \\\n    three\n",
			want:  map[string]string{"list": "one, two, three"},
		},
		"even_backslashes_do_not_continue": {
			input: "path=C\\\\\nnext=1\n",
			want:  map[string]string{"path": `C\`, "next": "1"},
		},
		"comment_ending_in_backslash": {
			input: "# not continued \\\nkey=value\n",
			want:  map[string]string{"key": "value"},
		},
		"last_definition_wins": {
			input: "key=first\nkey=second\n",
			want:  map[string]string{"key": "second"},
		},
		"surrogate_pair_escape": {
			input: `emoji=\uD83D\uDE00` + "\n",
			want:  map[string]string{"emoji": "\U0001F600"},
		},
		"unpaired_surrogate_is_replaced": {
			input: `half=\uD83Dx` + "\n",
			want:  map[string]string{"half": "\uFFFDx"},
		},
		"escaped_trailing_space_in_key": {
			input: `a\ =x` + "\n",
			want:  map[string]string{"a ": "x"},
		},
		"escaped_backslash_before_space_in_key": {
			input: `a\\ =x` + "\n",
			want:  map[string]string{`a\`: "x"},
		},
		"continuation_at_eof": {
			input: "key=value\\",
			want:  map[string]string{"key": "value"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseProperties(strings.NewReader(tt.input), "local.properties")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePropertiesMalformed(t *testing.T) {
	tests := map[string]struct {
		input    string
		wantLine int
		wantText string
	}{
		"missing_separator": {
			input:    "# header\nGOOGLE_MAPS_API_KEY=ok\nthis line has no separator\n",
			wantLine: 3,
			wantText: "this line has no separator",
		},
		"empty_key": {
			input:    "=value\n",
			wantLine: 1,
			wantText: "=value",
		},
		"bad_unicode_escape": {
			input:    "\n\nkey=\\u12\n",
			wantLine: 3,
			wantText: `key=\u12`,
		},
		"continued_line_reports_start": {
			input:    "ok=1\nbroken \\\n  still broken\n",
			wantLine: 2,
			wantText: "broken still broken",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseProperties(strings.NewReader(tt.input), "local.properties")
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrMalformedLine))

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, "local.properties", parseErr.Path)
			assert.Equal(t, tt.wantLine, parseErr.Line)
			assert.Equal(t, tt.wantText, parseErr.Text)
		})
	}
}

func TestLoadPropertiesFile(t *testing.T) {
	t.Run("reads_values", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "android/local.properties", []byte("GOOGLE_MAPS_API_KEY=FileKeyABC\nflutter.versionCode=1\n"), 0o600))

		props, err := LoadPropertiesFile(fs, "android/local.properties")
		require.NoError(t, err)

		value, ok := props.Lookup("GOOGLE_MAPS_API_KEY")
		assert.True(t, ok)
		assert.Equal(t, "FileKeyABC", value)
		assert.Equal(t, []string{"GOOGLE_MAPS_API_KEY", "flutter.versionCode"}, props.Keys())
		assert.Equal(t, "android/local.properties", props.Name())
	})

	t.Run("missing_file_is_empty", func(t *testing.T) {
		props, err := LoadPropertiesFile(afero.NewMemMapFs(), DefaultPropertiesFile)
		require.NoError(t, err)
		require.NotNil(t, props)

		_, ok := props.Lookup("GOOGLE_MAPS_API_KEY")
		assert.False(t, ok)
		assert.Empty(t, props.Keys())
	})

	t.Run("malformed_file_fails", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, DefaultPropertiesFile, []byte("GOOGLE_MAPS_API_KEY FileKeyABC\n"), 0o600))

		props, err := LoadPropertiesFile(fs, DefaultPropertiesFile)
		assert.Nil(t, props)
		assert.ErrorIs(t, err, ErrMalformedLine)
		assert.Contains(t, err.Error(), "local.properties:1")
	})

	t.Run("open_failure_is_propagated", func(t *testing.T) {
		openErr := &os.PathError{Op: "open", Path: DefaultPropertiesFile, Err: os.ErrPermission}
		fs := &failingOpenFs{Fs: afero.NewMemMapFs(), err: openErr}

		props, err := LoadPropertiesFile(fs, DefaultPropertiesFile)
		assert.Nil(t, props)
		assert.ErrorIs(t, err, os.ErrPermission)
	})
}

func TestLoadPropertiesFileClosesOnReadFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, DefaultPropertiesFile, []byte("GOOGLE_MAPS_API_KEY=FileKeyABC\n"), 0o600))
	fs := &trackingFs{Fs: base, readErr: errDiskGone}

	props, err := LoadPropertiesFile(fs, DefaultPropertiesFile)
	assert.Nil(t, props)
	assert.ErrorIs(t, err, errDiskGone)
	require.NotNil(t, fs.opened)
	assert.Equal(t, 1, fs.opened.closes)
}

func TestLoadPropertiesFileClosesOnParseFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, DefaultPropertiesFile, []byte("no separator\n"), 0o600))
	fs := &trackingFs{Fs: base}

	_, err := LoadPropertiesFile(fs, DefaultPropertiesFile)
	assert.ErrorIs(t, err, ErrMalformedLine)
	require.NotNil(t, fs.opened)
	assert.Equal(t, 1, fs.opened.closes)
}

func TestParsePropertiesReadFailure(t *testing.T) {
	got, err := ParseProperties(failingReader{}, "local.properties")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, errDiskGone)
}

var errDiskGone = errors.New("disk gone")

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errDiskGone
}

type failingOpenFs struct {
	afero.Fs
	err error
}

func (f *failingOpenFs) Open(string) (afero.File, error) {
	return nil, f.err
}

type trackingFs struct {
	afero.Fs
	readErr error
	opened  *trackingFile
}

func (f *trackingFs) Open(name string) (afero.File, error) {
	file, err := f.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	f.opened = &trackingFile{File: file, readErr: f.readErr}
	return f.opened, nil
}

type trackingFile struct {
	afero.File
	readErr error
	closes  int
}

func (f *trackingFile) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.File.Read(p)
}

func (f *trackingFile) Close() error {
	f.closes++
	return f.File.Close()
}
