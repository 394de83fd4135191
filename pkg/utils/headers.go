package utils

const (
	HEADER_API_KEY         = "x-api-key"
	HEADER_AUTH_KEY        = "Authorization"
	HEADER_CLIENT_INFO_KEY = "x-client-info"
	HEADER_APIKEY_KEY      = "apikey"
	HEADER_CONTENT_TYPE    = "Content-Type"

	BEARER_PREFIX = "Bearer "
)
