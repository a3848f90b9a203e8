package messaging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate_WithinLimitUnchanged(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 20))
}

func TestTruncate_OverLimitAppendsEllipsis(t *testing.T) {
	long := strings.Repeat("a", 30)
	got := Truncate(long, 20)
	assert.Len(t, got, 20)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestNormalizeButtons_CapsAtThree(t *testing.T) {
	buttons := []Button{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B"},
		{ID: "c", Title: "C"},
		{ID: "d", Title: "D"},
	}
	got := NormalizeButtons(buttons)
	assert.Len(t, got, MaxButtons)
}

func TestNormalizeButtons_TruncatesTitle(t *testing.T) {
	buttons := []Button{{ID: "a", Title: strings.Repeat("x", 30)}}
	got := NormalizeButtons(buttons)
	assert.LessOrEqual(t, len(got[0].Title), ButtonTitleLimit)
}

func TestNormalizeSections_CapsTotalRowsAtTen(t *testing.T) {
	rows := make([]ListRow, 7)
	for i := range rows {
		rows[i] = ListRow{ID: "r", Title: "t"}
	}
	sections := []ListSection{
		{Title: "Section A", Rows: rows},
		{Title: "Section B", Rows: rows},
	}
	got := NormalizeSections(sections)

	total := 0
	for _, s := range got {
		total += len(s.Rows)
	}
	assert.Equal(t, MaxListRows, total)
}
