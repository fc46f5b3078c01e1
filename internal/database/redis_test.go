package database

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnectRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client, err := ConnectRedis(context.Background(), "redis://"+server.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = ConnectRedis(context.Background(), "")
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), "://bad")
	require.Error(t, err)
}
