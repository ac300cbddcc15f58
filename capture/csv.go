package capture

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sigdec/tmc/signal"
)

// CSVLayout maps channels to CSV column indices for files without a header
// row. Stb < 0 means the capture has no strobe column.
type CSVLayout struct {
	Clk int
	Dio int
	Stb int
}

// ReadCSV reads a sigrok-cli style CSV export: optional ";"-prefixed
// comment lines (a "samplerate" comment sets the rate), an optional header
// row naming the channels (clk/dio/stb, case-insensitive), then one row of
// 0/1 values per sample.
//
// A positive sampleRate overrides the file's declared rate. layout applies
// only when the file has no header row; pass nil for the conventional
// column order CLK,DIO[,STB].
func ReadCSV(filename string, sampleRate float64, layout *CSVLayout) (*signal.Trace, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	cols := CSVLayout{Clk: -1, Dio: -1, Stb: -1}
	fileRate := 0.0
	headerSeen := false
	var samples []byte

	scanner := bufio.NewScanner(file)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ";") {
			if rate, ok := parseRateComment(line); ok {
				fileRate = rate
			}
			continue
		}

		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		if !headerSeen {
			headerSeen = true
			if !numericRow(fields) {
				// Header row: map channel names to columns.
				for i, name := range fields {
					switch strings.ToLower(name) {
					case "clk", "clock":
						cols.Clk = i
					case "dio", "data":
						cols.Dio = i
					case "stb", "strobe":
						cols.Stb = i
					}
				}
				if cols.Clk < 0 || cols.Dio < 0 {
					return nil, fmt.Errorf("CSV header names no clk/dio columns: %s", line)
				}
				continue
			}
			// Headerless file: positional layout.
			cols = defaultLayout(layout, len(fields))
		}

		b, err := packRow(fields, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		samples = append(samples, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if sampleRate <= 0 {
		sampleRate = fileRate
	}
	return signal.NewTrace(samples, sampleRate, cols.Stb >= 0), nil
}

// parseRateComment extracts a sample rate from a comment line such as
// "; Samplerate: 1000000". The rate is the last whitespace-separated token.
func parseRateComment(line string) (float64, bool) {
	if !strings.Contains(strings.ToLower(line), "samplerate") {
		return 0, false
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false
	}
	rate, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil || rate <= 0 {
		return 0, false
	}
	return rate, true
}

func numericRow(fields []string) bool {
	for _, f := range fields {
		if _, err := strconv.Atoi(f); err != nil {
			return false
		}
	}
	return true
}

func defaultLayout(layout *CSVLayout, ncols int) CSVLayout {
	if layout != nil {
		cols := *layout
		if cols.Stb >= ncols {
			// A strobe column beyond the row width means a 2-wire capture.
			cols.Stb = -1
		}
		return cols
	}
	cols := CSVLayout{Clk: 0, Dio: 1, Stb: -1}
	if ncols > 2 {
		cols.Stb = 2
	}
	return cols
}

// packRow packs one CSV row into the trace sample layout.
func packRow(fields []string, cols CSVLayout) (byte, error) {
	var b byte
	for _, bit := range []struct {
		name string
		col  int
		mask byte
	}{
		{"clk", cols.Clk, signal.ClkBit},
		{"dio", cols.Dio, signal.DioBit},
		{"stb", cols.Stb, signal.StbBit},
	} {
		if bit.col < 0 {
			continue
		}
		if bit.col >= len(fields) {
			return 0, fmt.Errorf("row has %d columns, %s needs column %d",
				len(fields), bit.name, bit.col)
		}
		switch fields[bit.col] {
		case "0":
		case "1":
			b |= bit.mask
		default:
			return 0, fmt.Errorf("invalid sample value %q", fields[bit.col])
		}
	}
	return b, nil
}
