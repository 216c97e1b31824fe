package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const block = "def handler(request):\n    user = request.get('user')\n    if not user:\n        return error(401)\n    session = load_session(user)\n    return render(session)\n"

func TestBlocksSplitsNonBlankLines(t *testing.T) {
	blocks := Blocks("a.py", block, 6)
	if assert.Len(t, blocks, 1) {
		assert.Equal(t, "a.py", blocks[0].FilePath)
		assert.Len(t, blocks[0].Lines, 6)
	}
}

func TestDetectFindsCrossFileDuplicate(t *testing.T) {
	a := Blocks("a.py", block, 6)
	b := Blocks("b.py", block, 6)

	out := Detect(append(a, b...), 0.8)
	if assert.Len(t, out, 1) {
		assert.Equal(t, "a.py", out[0].FilePath)
		assert.Contains(t, out[0].Metadata["duplicate_of"], "b.py")
	}
}

func TestDetectSkipsSameFile(t *testing.T) {
	a := Blocks("a.py", block+block, 6)
	out := Detect(a, 0.8)
	assert.Empty(t, out)
}

func TestDetectBelowThreshold(t *testing.T) {
	a := Blocks("a.py", block, 6)
	b := Blocks("b.py", "totally\ndifferent\ncontent\nhere\nfor\nsure\n", 6)
	out := Detect(append(a, b...), 0.8)
	assert.Empty(t, out)
}

func TestBlocksStripsLineComments(t *testing.T) {
	content := "x = 1  # set x\n# a standalone comment\ny = 2\n"
	blocks := Blocks("a.py", content, 2)
	if assert.Len(t, blocks, 1) {
		assert.Equal(t, []string{"x = 1", "y = 2"}, blocks[0].Lines)
		assert.Equal(t, 1, blocks[0].StartLine)
		assert.Equal(t, 3, blocks[0].EndLine)
	}
}

func TestBlocksSlideByOneLine(t *testing.T) {
	content := "a\nb\nc\nd\n"
	blocks := Blocks("a.js", content, 2)
	require := assert.New(t)
	require.Len(blocks, 3)
	require.Equal([]string{"a", "b"}, blocks[0].Lines)
	require.Equal([]string{"b", "c"}, blocks[1].Lines)
	require.Equal([]string{"c", "d"}, blocks[2].Lines)
}
