package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStore(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir(), "/attachments")
	require.NoError(t, err)

	t.Run("Store And Retrieve", func(t *testing.T) {
		data := []byte("fake png bytes")

		url, err := store.Store(data, "image/png")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "/attachments/"))
		assert.True(t, strings.HasSuffix(url, ".png"))

		got, err := store.Retrieve(url)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("Rejects Unknown Mime Type", func(t *testing.T) {
		_, err := store.Store([]byte("#!/bin/sh"), "application/x-sh")
		assert.Error(t, err)
	})

	t.Run("Rejects Path Traversal", func(t *testing.T) {
		_, err := store.Retrieve("..")
		assert.Error(t, err)

		_, err = store.Retrieve("/attachments/not-there.png")
		assert.Error(t, err)
	})
}
