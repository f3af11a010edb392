package utils

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// ResponseData is the envelope used by every REST handler.
type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded panics with the given error so the recovery middleware can
// translate it into a proper HTTP response. Keeps handlers flat.
func PanicIfNeeded(err error) {
	if err != nil {
		panic(err)
	}
}

// LoadConfig loads a .env file from the given directory if present.
// Missing files are fine; real deployments configure via environment.
func LoadConfig(path string) {
	envPath := filepath.Join(path, ".env")
	if err := godotenv.Load(envPath); err == nil {
		logrus.Infof("[CONFIG] Loaded environment from %s", envPath)
	}
}
