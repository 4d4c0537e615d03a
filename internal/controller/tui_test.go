package controller

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultModel(t *testing.T) {
	model := newResultModel("patchwatch · 3 findings", "first line\nsecond line\n")
	assert.Equal(t, "Loading…", model.View())

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	model = updated.(resultModel)

	require.True(t, model.ready)

	view := model.View()
	assert.Contains(t, view, "patchwatch · 3 findings")
	assert.Contains(t, view, "first line")
	assert.Contains(t, view, "q quit")
}

func TestResultModel_Quit(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	} {
		t.Run(key.String(), func(t *testing.T) {
			_, cmd := newResultModel("t", "c").Update(key)
			require.NotNil(t, cmd)
			assert.Equal(t, tea.Quit(), cmd())
		})
	}
}
