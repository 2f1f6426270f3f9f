package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/todo-sync/internal/model"
	"github.com/BuzzLyutic/todo-sync/internal/syncer"
)

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024年3月9日", FormatDate(time.Date(2024, time.March, 9, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025年12月31日", FormatDate(time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)))
}

func TestView(t *testing.T) {
	due := model.NewDate(2024, time.March, 10)
	v := syncer.View{Rows: []syncer.Row{
		{Todo: model.Todo{ID: 3, Title: "Buy milk", Priority: model.PriorityLow}},
		{Todo: model.Todo{ID: 1, Title: "Pay rent", Priority: model.PriorityHigh, DueDate: &due}, Checked: true},
	}}

	var buf bytes.Buffer
	require.NoError(t, View(&buf, v, time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC)))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"2024年3月9日",
		"[ ] #3 Buy milk - Low",
		"[x] #1 Pay rent - High (due 2024-03-10)",
	}, lines)
}

func TestView_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, View(&buf, syncer.View{}, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024年1月1日\n(no todos)\n", buf.String())
}

func TestStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Stats(&buf, model.Stats{
		Total:      4,
		Completed:  1,
		ByPriority: map[model.Priority]int{model.PriorityHigh: 1, model.PriorityLow: 3},
	}))

	out := buf.String()
	assert.Contains(t, out, "total: 4, completed: 1")
	assert.Contains(t, out, "Medium 0")
	assert.Contains(t, out, "Low    3")
}
