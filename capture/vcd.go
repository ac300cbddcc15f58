package capture

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sigdec/tmc/signal"
)

// ReadVCD reads a value change dump covering the bus channels. Only the
// subset produced by logic-analyzer exports is supported: scalar (1-bit)
// wires, "#" timestamps in units of the declared timescale, and 0/1 value
// changes. One timescale tick is one sample; the sample rate is derived
// from the timescale unless a positive sampleRate override is given.
func ReadVCD(filename string, sampleRate float64) (*signal.Trace, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var (
		idMask   = map[string]byte{} // VCD identifier -> channel bit mask
		fileRate float64
		hasStb   bool
		samples  []byte
		cur      byte // current packed channel state
		lastTime = 0
		inDefs   = true
	)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if inDefs {
			switch {
			case strings.HasPrefix(line, "$timescale"):
				rate, err := parseTimescale(line, scanner)
				if err != nil {
					return nil, err
				}
				fileRate = rate
			case strings.HasPrefix(line, "$var"):
				id, mask, err := parseVar(line)
				if err != nil {
					return nil, err
				}
				if mask != 0 {
					idMask[id] = mask
					if mask == signal.StbBit {
						hasStb = true
					}
				}
			case strings.HasPrefix(line, "$enddefinitions"):
				inDefs = false
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "#"):
			t, err := strconv.Atoi(line[1:])
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp %q", line)
			}
			if t < lastTime {
				return nil, fmt.Errorf("timestamp %d goes backwards", t)
			}
			// The state so far holds for every sample up to t.
			for ; lastTime < t; lastTime++ {
				samples = append(samples, cur)
			}
		case line[0] == '0' || line[0] == '1':
			id := strings.TrimSpace(line[1:])
			mask, ok := idMask[id]
			if !ok {
				continue // change on a wire we do not track
			}
			if line[0] == '1' {
				cur |= mask
			} else {
				cur &^= mask
			}
		case strings.HasPrefix(line, "$"):
			// $dumpvars / $end and friends carry no sample data.
		default:
			return nil, fmt.Errorf("unsupported VCD line %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// The final state is the last sample.
	samples = append(samples, cur)

	if len(idMask) == 0 {
		return nil, fmt.Errorf("VCD file declares no clk/dio/stb wires")
	}
	if sampleRate <= 0 {
		sampleRate = fileRate
	}
	return signal.NewTrace(samples, sampleRate, hasStb), nil
}

// parseTimescale handles "$timescale 1 us $end", possibly split across
// lines, and converts the tick period to a sample rate.
func parseTimescale(line string, scanner *bufio.Scanner) (float64, error) {
	for !strings.Contains(line, "$end") && scanner.Scan() {
		line += " " + strings.TrimSpace(scanner.Text())
	}
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[len(fields)-1] != "$end" {
		return 0, fmt.Errorf("malformed $timescale line %q", line)
	}
	// Strip "$timescale" and "$end", leaving "1 us" or "1us".
	spec := strings.Join(fields[1:len(fields)-1], "")
	i := 0
	for i < len(spec) && spec[i] >= '0' && spec[i] <= '9' {
		i++
	}
	num, err := strconv.Atoi(spec[:i])
	if err != nil || num <= 0 {
		return 0, fmt.Errorf("invalid timescale %q", spec)
	}
	unit, ok := map[string]float64{
		"s": 1, "ms": 1e-3, "us": 1e-6, "ns": 1e-9, "ps": 1e-12, "fs": 1e-15,
	}[spec[i:]]
	if !ok {
		return 0, fmt.Errorf("invalid timescale unit in %q", spec)
	}
	return 1 / (float64(num) * unit), nil
}

// parseVar handles "$var wire 1 <id> <name> $end". Wires whose names are
// not bus channels are reported with a zero mask and ignored.
func parseVar(line string) (string, byte, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return "", 0, fmt.Errorf("malformed $var line %q", line)
	}
	if fields[1] != "wire" || fields[2] != "1" {
		return "", 0, fmt.Errorf("unsupported $var (only scalar wires): %q", line)
	}
	id, name := fields[3], strings.ToLower(fields[4])
	switch name {
	case "clk", "clock":
		return id, signal.ClkBit, nil
	case "dio", "data":
		return id, signal.DioBit, nil
	case "stb", "strobe":
		return id, signal.StbBit, nil
	}
	return id, 0, nil
}
