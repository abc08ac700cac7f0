package config

import (
	"sync"
)

var (
	textractOnce   sync.Once
	textractConfig *TextractConfig
)

type TextractConfig struct {
	Enabled         bool
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	MinConfidence   float32
}

func GetTextractConfig() *TextractConfig {
	textractOnce.Do(func() {
		loadEnv()

		textractConfig = &TextractConfig{
			Enabled:         getEnvBool("TEXTRACT_ENABLED", false),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			MinConfidence:   float32(getEnvInt("TEXTRACT_MIN_CONFIDENCE", 60)),
		}
	})
	return textractConfig
}
