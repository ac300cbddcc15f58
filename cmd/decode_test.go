package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sigdec/tmc/config"
	"github.com/sigdec/tmc/signal"
)

func writeCapture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestReadTraceUsesConfiguredColumns(t *testing.T) {
	// Headerless CSV with DIO in column 0 and CLK in column 2,
	// mapped through the [channels] configuration.
	clk, dio, stb := config.ClkColumn, config.DioColumn, config.StbColumn
	defer func() {
		config.ClkColumn, config.DioColumn, config.StbColumn = clk, dio, stb
	}()
	config.ClkColumn, config.DioColumn, config.StbColumn = 2, 0, -1

	path := writeCapture(t, "session.csv",
		"1,0,0\n"+
			"0,0,1\n")

	trace, err := readTrace(path)
	if err != nil {
		t.Fatalf("readTrace failed: %v", err)
	}
	if s := trace.At(0); s.Clk != 0 || s.Dio != 1 {
		t.Errorf("At(0) = %+v, want clk=0 dio=1", s)
	}
	if s := trace.At(1); s.Clk != 1 || s.Dio != 0 {
		t.Errorf("At(1) = %+v, want clk=1 dio=0", s)
	}
	if trace.HasChannel(signal.Stb) {
		t.Error("configured layout without strobe must not report the channel")
	}
}

func TestReadTraceChannelsFlagWins(t *testing.T) {
	clk, dio := config.ClkColumn, config.DioColumn
	columns := decodeColumns
	defer func() {
		config.ClkColumn, config.DioColumn = clk, dio
		decodeColumns = columns
	}()
	config.ClkColumn, config.DioColumn = 1, 0
	decodeColumns = "0,1"

	path := writeCapture(t, "session.csv", "1,0\n")

	trace, err := readTrace(path)
	if err != nil {
		t.Fatalf("readTrace failed: %v", err)
	}
	if s := trace.At(0); s.Clk != 1 || s.Dio != 0 {
		t.Errorf("At(0) = %+v, want clk=1 dio=0 from the flag mapping", s)
	}
}
