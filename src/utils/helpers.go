package utils

import (
	"fmt"

	"tablebook/src/config"
	"tablebook/src/types"
)

func IsProd() bool {
	return config.APIEnv() == string(types.Production)
}

func IsLocal() bool {
	return config.APIEnv() == string(types.Local)
}

// WithSuffix scopes a queue or topic name to the current environment.
// Production names are left bare.
func WithSuffix(name string) string {
	if IsProd() {
		return name
	}
	return fmt.Sprintf("%s_%s", name, config.APIEnv())
}
