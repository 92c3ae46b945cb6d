package scram_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/pgwire/scram"
)

func TestInitialResponseFormat(t *testing.T) {
	t.Parallel()

	c, err := scram.NewClient("alice", "s3cr3t")
	require.NoError(t, err)

	resp := c.InitialResponse()
	assert.Contains(t, string(resp), "n,,n=")
	assert.Contains(t, string(resp), "r=")
}

func TestContinueResponseRejectsMismatchedNonce(t *testing.T) {
	t.Parallel()

	c, err := scram.NewClient("alice", "s3cr3t")
	require.NoError(t, err)
	c.InitialResponse()

	_, err = c.ContinueResponse([]byte("r=not-the-client-nonce,s=c2FsdA==,i=4096"))
	assert.Error(t, err)
}

func TestFinishRejectsServerError(t *testing.T) {
	t.Parallel()

	c, err := scram.NewClient("alice", "s3cr3t")
	require.NoError(t, err)
	resp := c.InitialResponse()
	clientNonce := resp[len("n,,n=alice,r="):]

	_, err = c.ContinueResponse([]byte("r=" + string(clientNonce) + "extra,s=c2FsdA==,i=4096"))
	require.NoError(t, err)

	err = c.Finish([]byte("e=invalid-proof"))
	assert.ErrorContains(t, err, "invalid-proof")
}
