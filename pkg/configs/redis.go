package configs

import "fmt"

type RedisConfig struct {
	Host            string `mapstructure:"host" validate:"required"`
	Port            int    `mapstructure:"port" validate:"required"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
