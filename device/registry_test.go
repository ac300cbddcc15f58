package device

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sigdec/tmc/config"
)

func TestFindHonorsConfiguredPort(t *testing.T) {
	// With a port configured, Find opens it directly instead of scanning,
	// and reports a failure on that port rather than falling back.
	port := config.DevPort
	defer func() { config.DevPort = port }()
	config.DevPort = filepath.Join(t.TempDir(), "no-such-port")

	_, err := Find()
	if err == nil {
		t.Fatal("Find succeeded on a nonexistent configured port")
	}
	if !strings.Contains(err.Error(), config.DevPort) {
		t.Errorf("error %q does not name the configured port", err)
	}
}

func TestProbeBaud(t *testing.T) {
	baud := config.DevBaud
	defer func() { config.DevBaud = baud }()

	config.DevBaud = 9600
	if got := probeBaud(); got != 9600 {
		t.Errorf("probeBaud = %d, want the configured 9600", got)
	}
	config.DevBaud = 0
	if got := probeBaud(); got != 115200 {
		t.Errorf("probeBaud = %d, want the 115200 default", got)
	}
}
