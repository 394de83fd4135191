package utils

import "strings"

type Environment string

const (
	PRODUCTION  Environment = "production"
	DEVELOPMENT Environment = "development"
)

func (e Environment) Get() string {
	return string(e)
}

// FromEnvironmentStr defaults to development for anything unrecognised.
func FromEnvironmentStr(env string) Environment {
	switch strings.ToLower(env) {
	case "production":
		return PRODUCTION
	default:
		return DEVELOPMENT
	}
}
