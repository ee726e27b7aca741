package redisstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildRouter_DisabledUsesInProcessBus(t *testing.T) {
	r, err := BuildRouter(Settings{}, false)
	require.NoError(t, err)
	require.NotNil(t, r.Publisher)
	require.NotNil(t, r.Subscriber)
	require.NoError(t, r.Close())
}

func TestEnsureGroupAtTail_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := EnsureGroupAtTail(ctx, "127.0.0.1:1", "docchat.transcript", "g")
	require.Error(t, err)
}
