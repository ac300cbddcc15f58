package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"

	"github.com/sigdec/tmc/device"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List serial ports and recognized capture devices",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ports, err := enumerator.GetDetailedPortsList()
		cobra.CheckErr(err)

		if len(ports) == 0 {
			fmt.Println("No serial ports found.")
		}
		for _, port := range ports {
			tag := ""
			if recognized(port) {
				tag = " (capture device)"
			}
			if port.IsUSB {
				fmt.Printf("%-20s VID=%s PID=%s S/N=%s%s\n",
					port.Name, port.VID, port.PID, port.SerialNumber, tag)
			} else {
				fmt.Printf("%-20s\n", port.Name)
			}
		}
		fmt.Printf("USB analyzer support: fx2lafw VID=0x%04X PID=0x%04X\n",
			device.USBVendorID, device.USBProductID)
	},
}

// recognized reports whether the port's VID/PID matches a registered
// capture device.
func recognized(port *enumerator.PortDetails) bool {
	vid, err := strconv.ParseUint(port.VID, 16, 16)
	if err != nil {
		return false
	}
	pid, err := strconv.ParseUint(port.PID, 16, 16)
	if err != nil {
		return false
	}
	for _, info := range device.Registered() {
		if info.VendorID == uint16(vid) && info.ProductID == uint16(pid) {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
