package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "watch"})

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	migrate := serve.Flags().Lookup("migrate")
	require.NotNil(t, migrate)
	assert.Equal(t, "true", migrate.DefValue)
}

func TestWatchRequiresCredentials(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"watch", "--email", "a@example.com"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token")
}
