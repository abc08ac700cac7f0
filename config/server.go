package config

import (
	"sync"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig
)

type ServerConfig struct {
	Addr        string
	LogLevel    string
	StorageType string
}

func GetServerConfig() *ServerConfig {
	serverOnce.Do(func() {
		loadEnv()

		serverConfig = &ServerConfig{
			Addr:        getEnv("SERVER_ADDR", ":8080"),
			LogLevel:    getEnv("APP_LOG_LEVEL", "info"),
			StorageType: getEnv("STORAGE_TYPE", "minio"),
		}
	})
	return serverConfig
}
