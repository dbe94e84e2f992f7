package daemon

import (
	"encoding/json"
	"testing"

	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLoadShowCommand(t *testing.T) {
	cmd, err := CreateLoadShowCommand(12)
	require.NoError(t, err)

	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"load_show","show_id":12}`, string(data))
}

func TestCreateLoadShowCommandRejectsZero(t *testing.T) {
	_, err := CreateLoadShowCommand(0)
	assert.True(t, domain.IsInvalidInput(err))
}

func TestCreateManualFireCommand(t *testing.T) {
	cmd, err := CreateManualFireCommand("2", 7)
	require.NoError(t, err)

	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"manual_fire","zone":"2","target":7}`, string(data))
	assert.Equal(t, "manual_fire 2:7", cmd.String())
}

func TestCreateManualFireCommandValidation(t *testing.T) {
	_, err := CreateManualFireCommand("", 1)
	assert.True(t, domain.IsInvalidInput(err))

	_, err = CreateManualFireCommand("1", 0)
	assert.True(t, domain.IsInvalidInput(err))
}

func TestParameterlessCommands(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CreateUnloadShowCommand(), `{"type":"unload_show"}`},
		{CreateStartShowCommand(), `{"type":"start_show"}`},
		{CreateStopShowCommand(), `{"type":"stop_show"}`},
		{CreateArmCommand(), `{"type":"arm"}`},
		{CreateDisarmCommand(), `{"type":"disarm"}`},
	}

	for _, tt := range tests {
		t.Run(string(tt.cmd.Type), func(t *testing.T) {
			data, err := json.Marshal(tt.cmd)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("load_show", 3, "", 0)
	require.NoError(t, err)
	assert.Equal(t, Command{Type: CommandLoadShow, ShowID: 3}, cmd)

	cmd, err = ParseCommand("arm", 3, "1", 1)
	require.NoError(t, err)
	assert.Equal(t, Command{Type: CommandArm}, cmd)

	_, err = ParseCommand("self_destruct", 0, "", 0)
	assert.True(t, domain.IsInvalidInput(err))
}
