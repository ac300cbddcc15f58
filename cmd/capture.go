package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigdec/tmc/config"
	"github.com/sigdec/tmc/decoder"
	"github.com/sigdec/tmc/device"
	"github.com/sigdec/tmc/signal"
)

var (
	captureSamples int
	captureDecode  bool
)

var captureCmd = &cobra.Command{
	Use:   "capture [FILE]",
	Short: "Capture samples from an attached logic probe",
	Long: "Capture packed bus samples from an attached logic probe and write them\n" +
		"to a raw capture file. Optionally specify a FILE to write.",
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dev, err := device.Find()
		cobra.CheckErr(err)
		defer dev.Close()

		n := captureSamples
		if n <= 0 {
			n = config.DevSamples
		}

		fmt.Printf("Capturing %d samples from %s...\n", n, dev.Name())
		samples, err := dev.Capture(n)
		cobra.CheckErr(err)

		if captureDecode {
			trace := signal.NewTrace(samples, config.SampleRate, signal.StrobePresent(samples))
			printer := newPrinter(os.Stdout, false)
			cobra.CheckErr(decoder.New(config.Radix).Run(trace, printer))
			fmt.Printf("%d samples, %d events\n", trace.Len(), len(printer.events))
			return
		}

		filename := "tmc_capture.raw"
		if len(args) > 0 {
			filename = args[0]
		}
		cobra.CheckErr(os.WriteFile(filename, samples, 0644))
		fmt.Printf("Wrote %d samples to %s\n", len(samples), filename)
	},
}

func init() {
	captureCmd.Flags().IntVarP(&captureSamples, "samples", "n", 0, "number of samples to capture (default from config)")
	captureCmd.Flags().BoolVar(&captureDecode, "decode", false, "decode the capture immediately instead of writing a file")
	rootCmd.AddCommand(captureCmd)
}
