package docker

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/docker/docker/api/types/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRegistryAuth(t *testing.T) {
	encoded, err := EncodeRegistryAuth("registry-user", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := base64.URLEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var auth registry.AuthConfig
	require.NoError(t, json.Unmarshal(decoded, &auth))
	assert.Equal(t, "registry-user", auth.Username)
	assert.Equal(t, "s3cret", auth.Password)
}

func TestEncodeRegistryAuth_EmptyCredentials(t *testing.T) {
	encoded, err := EncodeRegistryAuth("", "")
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)
}
