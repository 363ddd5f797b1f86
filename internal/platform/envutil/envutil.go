package envutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		if log != nil {
			log.Debug("Environment variable not set, using default", "env_var", key, "default", defaultVal)
		}
		return defaultVal
	}
	return strings.TrimSpace(val)
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	valStr, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(valStr) == "" {
		if log != nil {
			log.Debug("Environment variable not set, using default", "env_var", key, "default", defaultVal)
		}
		return defaultVal
	}
	i, err := strconv.Atoi(strings.TrimSpace(valStr))
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as int, using default",
				"env_var", key, "provided", valStr, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	return i
}

func GetEnvAsFloat(key string, defaultVal float64, log *logger.Logger) float64 {
	valStr, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(valStr) == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(valStr), 64)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as float, using default",
				"env_var", key, "provided", valStr, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	return f
}
