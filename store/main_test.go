package store

import (
	"io"
	"os"
	"testing"

	"ffinder-server/logging"
)

func TestMain(m *testing.M) {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
	os.Exit(m.Run())
}
