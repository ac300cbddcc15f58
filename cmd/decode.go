package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigdec/tmc/capture"
	"github.com/sigdec/tmc/config"
	"github.com/sigdec/tmc/decoder"
	"github.com/sigdec/tmc/signal"
)

var (
	decodeRadix   string
	decodeRate    float64
	decodeColumns string
	decodeBits    bool
	decodeOutput  string
	decodeBinary  string
)

var decodeCmd = &cobra.Command{
	Use:   "decode FILE",
	Short: "Decode a capture file",
	Long: "Decode a logic-analyzer capture file (CSV, VCD or raw packed samples)\n" +
		"and print the protocol events with their sample spans.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		filename := args[0]

		radix := config.Radix
		if decodeRadix != "" {
			r, err := decoder.ParseRadix(decodeRadix)
			cobra.CheckErr(err)
			radix = r
		}

		trace, err := readTrace(filename)
		cobra.CheckErr(err)
		if trace.SampleRate() <= 0 {
			// The file declared no rate and no override was given.
			trace.SetSampleRate(config.SampleRate)
		}

		printer := newPrinter(os.Stdout, decodeBits)
		dec := decoder.New(radix)
		cobra.CheckErr(dec.Run(trace, printer))

		fmt.Printf("%d samples, %d events\n", trace.Len(), len(printer.events))

		if decodeBinary != "" {
			err := os.WriteFile(decodeBinary, printer.raw, 0644)
			cobra.CheckErr(err)
			fmt.Printf("Wrote %d bytes to %s\n", len(printer.raw), decodeBinary)
		}
		if decodeOutput != "" {
			err := writeExport(decodeOutput, filename, trace.SampleRate(), printer)
			cobra.CheckErr(err)
			fmt.Printf("Wrote %d events to %s\n", len(printer.events), decodeOutput)
		}
	},
}

// readTrace reads the capture file. Headerless CSV files use the --channels
// column mapping when given, and the configured [channels] columns otherwise.
func readTrace(filename string) (*signal.Trace, error) {
	isCSV := capture.DetectFormat(filename) == capture.FormatCSV
	if decodeColumns != "" {
		if !isCSV {
			return nil, fmt.Errorf("--channels applies to CSV captures only")
		}
		layout, err := parseColumns(decodeColumns)
		if err != nil {
			return nil, err
		}
		return capture.ReadCSV(filename, decodeRate, layout)
	}
	if isCSV {
		return capture.ReadCSV(filename, decodeRate, &capture.CSVLayout{
			Clk: config.ClkColumn,
			Dio: config.DioColumn,
			Stb: config.StbColumn,
		})
	}
	return capture.Read(filename, decodeRate)
}

// parseColumns parses a "clk,dio[,stb]" column list.
func parseColumns(s string) (*capture.CSVLayout, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 2 && len(fields) != 3 {
		return nil, fmt.Errorf("invalid --channels %q (want clk,dio[,stb] column indices)", s)
	}
	layout := capture.CSVLayout{Stb: -1}
	for i, f := range fields {
		col, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || col < 0 {
			return nil, fmt.Errorf("invalid column index %q in --channels", f)
		}
		switch i {
		case 0:
			layout.Clk = col
		case 1:
			layout.Dio = col
		case 2:
			layout.Stb = col
		}
	}
	return &layout, nil
}

func init() {
	decodeCmd.Flags().StringVar(&decodeRadix, "radix", "", "byte value format: Hex, Dec, Oct or Bin (default from config)")
	decodeCmd.Flags().Float64Var(&decodeRate, "samplerate", 0, "capture sample rate, overrides the file's own")
	decodeCmd.Flags().StringVar(&decodeColumns, "channels", "", "CSV column mapping as clk,dio[,stb] for headerless files")
	decodeCmd.Flags().BoolVar(&decodeBits, "bits", false, "print per-bit annotations")
	decodeCmd.Flags().StringVarP(&decodeOutput, "output", "o", "", "write decoded events to a YAML file")
	decodeCmd.Flags().StringVar(&decodeBinary, "binary", "", "write assembled data bytes to a file")
	rootCmd.AddCommand(decodeCmd)
}
