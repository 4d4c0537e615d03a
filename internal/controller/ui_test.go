package controller

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{name: "", want: FormatTable},
		{name: "table", want: FormatTable},
		{name: "json", want: FormatJSON},
		{name: "yaml", want: FormatYAML},
		{name: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewUI(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	assert.IsType(t, &StructuredUI{}, NewUI(cmd, FormatJSON, false))
	assert.IsType(t, &StructuredUI{}, NewUI(cmd, FormatYAML, true))
	assert.IsType(t, &SimpleUI{}, NewUI(cmd, FormatTable, false))
	assert.IsType(t, &SimpleUI{}, NewUI(cmd, FormatTable, true), "non-terminal output falls back to tables")
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
}
