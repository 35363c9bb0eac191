package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults from zero config", cfg: Config{}},
		{name: "explicit valid", cfg: Config{Size: 5, Overlap: 1}},
		{name: "zero overlap", cfg: Config{Size: 10, Overlap: 0}},
		{name: "overlap equals size", cfg: Config{Size: 5, Overlap: 5}, wantErr: true},
		{name: "overlap exceeds size", cfg: Config{Size: 5, Overlap: 6}, wantErr: true},
		{name: "negative overlap", cfg: Config{Size: 5, Overlap: -1}, wantErr: true},
		{name: "negative size", cfg: Config{Size: -1, Overlap: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{
			name: "empty input yields no chunks",
			size: 5, overlap: 1,
			text: "",
			want: nil,
		},
		{
			name: "whitespace only yields no chunks",
			size: 5, overlap: 1,
			text: "   \n\t ",
			want: nil,
		},
		{
			name: "fewer words than size yields one chunk",
			size: 5, overlap: 1,
			text: "one two three",
			want: []string{"one two three"},
		},
		{
			name: "exactly size words yields one chunk",
			size: 5, overlap: 1,
			text: "w0 w1 w2 w3 w4",
			want: []string{"w0 w1 w2 w3 w4"},
		},
		{
			name: "twelve words size five overlap one",
			size: 5, overlap: 1,
			text: words(12),
			want: []string{
				"w0 w1 w2 w3 w4",
				"w4 w5 w6 w7 w8",
				"w8 w9 w10 w11",
			},
		},
		{
			name: "no overlap",
			size: 3, overlap: 0,
			text: "a b c d e f g",
			want: []string{"a b c", "d e f", "g"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(Config{Size: tt.size, Overlap: tt.overlap})
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Split(tt.text))
		})
	}
}

func TestSplitChunkCountFormula(t *testing.T) {
	// For w > size, chunk count is ceil((w - overlap) / (size - overlap)).
	cases := []struct{ w, size, overlap int }{
		{12, 5, 1},
		{100, 10, 2},
		{251, 250, 25},
		{1000, 250, 25},
		{9, 5, 1},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("w%d_s%d_o%d", tc.w, tc.size, tc.overlap), func(t *testing.T) {
			c, err := New(Config{Size: tc.size, Overlap: tc.overlap})
			require.NoError(t, err)
			got := c.Split(words(tc.w))

			step := tc.size - tc.overlap
			want := ((tc.w - tc.overlap) + step - 1) / step
			assert.Len(t, got, want)
		})
	}
}

func TestSplitDeterministic(t *testing.T) {
	c, err := New(NewDefaultConfig())
	require.NoError(t, err)

	text := words(1234)
	first := c.Split(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Split(text))
	}
}

func TestSplitOverlapCorrectness(t *testing.T) {
	const size, overlap = 10, 3
	c, err := New(Config{Size: size, Overlap: overlap})
	require.NoError(t, err)

	chunks := c.Split(words(95))
	require.Greater(t, len(chunks), 1)

	for i := 0; i < len(chunks)-1; i++ {
		cur := strings.Fields(chunks[i])
		next := strings.Fields(chunks[i+1])
		require.Len(t, cur, size)

		tail := cur[len(cur)-overlap:]
		head := next[:overlap]
		assert.Equal(t, tail, head, "chunk %d tail should equal chunk %d head", i, i+1)
	}
}

func TestSplitCoversAllWords(t *testing.T) {
	c, err := New(Config{Size: 7, Overlap: 2})
	require.NoError(t, err)

	text := words(53)
	chunks := c.Split(text)

	// Deduplicating the overlap reconstructs the original word sequence.
	var rebuilt []string
	for i, chunk := range chunks {
		ws := strings.Fields(chunk)
		if i > 0 {
			ws = ws[2:]
		}
		rebuilt = append(rebuilt, ws...)
	}
	assert.Equal(t, strings.Fields(text), rebuilt)
}
