package provisioning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gjolly/aws-k8s/internal/state"
)

type recordingPhase struct {
	name string
	err  error
	log  *[]string
}

func (p *recordingPhase) Name() string { return p.name }

func (p *recordingPhase) Provision(_ *Context) error {
	*p.log = append(*p.log, p.name)
	return p.err
}

func TestRunPhases_SequentialOrder(t *testing.T) {
	var ran []string
	phases := []Phase{
		&recordingPhase{name: "first", log: &ran},
		&recordingPhase{name: "second", log: &ran},
		&recordingPhase{name: "third", log: &ran},
	}

	err := RunPhases(testContext(t), phases)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ran)
}

func TestRunPhases_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	var ran []string
	phases := []Phase{
		&recordingPhase{name: "first", log: &ran},
		&recordingPhase{name: "second", err: boom, log: &ran},
		&recordingPhase{name: "third", log: &ran},
	}

	err := RunPhases(testContext(t), phases)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "second phase failed")
	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestSaveRecord_Persists(t *testing.T) {
	ctx := testContext(t)
	ctx.Record.SetNetwork("vpc-1", "subnet-1", "sg-1")

	require.NoError(t, ctx.SaveRecord())

	loaded, err := ctx.Store.Load("demo")
	require.NoError(t, err)
	assert.True(t, loaded.HasNetwork())
}

func testContext(t *testing.T) *Context {
	t.Helper()
	store := state.NewStoreAt(t.TempDir())
	record := state.NewClusterRecord("demo", "eu-west-1")
	return NewContext(context.Background(), nil, record, store, nil, nil, nil)
}
