package docker

import (
	"encoding/base64"
	"encoding/json"

	"github.com/docker/docker/api/types/registry"
)

// EncodeRegistryAuth encodes registry credentials into the header format the
// daemon expects for pulls from private registries.
func EncodeRegistryAuth(username, password string) (string, error) {
	auth := registry.AuthConfig{
		Username: username,
		Password: password,
	}
	buf, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}
