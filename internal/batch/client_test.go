package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The constructor table is populated at package init and its NewClient
// closures call back into newClient, which consults the table again; both
// directions must work for every backend.
func TestDefaultBatchesConstructors(t *testing.T) {
	for _, qtype := range []string{QTypeSlurm, QTypeTorque, QTypeLSF, QTypeLocal} {
		t.Run(qtype, func(t *testing.T) {
			classes, ok := defaultBatches[qtype]
			require.True(t, ok)

			srv := classes.NewServer(Deps{Run: newStubRunner()})
			assert.Equal(t, qtype, srv.Name())

			client, err := classes.NewClient(false, "", Deps{Run: newStubRunner()})
			require.NoError(t, err)
			defer client.Release()
			assert.Equal(t, qtype, client.QType())
			assert.False(t, client.Remote())
			assert.True(t, client.Connected())
		})
	}
}

func TestNewClientUnknownQType(t *testing.T) {
	_, err := newClient("mesos", false, "", Deps{})
	assert.ErrorIs(t, err, ErrUnknownQueue)
}
