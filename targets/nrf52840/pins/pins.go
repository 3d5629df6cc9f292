// Package pins maps nRF52840 GPIO numbers to their port names.
// machine.Pin numbers P0.00-P0.31 as 0-31 and P1.00-P1.15 as 32-47.
package pins

import "strconv"

// Count is the number of GPIOs on the nRF52840
const Count = 48

const portWidth = 32

// Valid reports whether pin exists on the chip
func Valid(pin uint8) bool {
	return pin < Count
}

// Name returns the Pn.mm name of pin, or "" for a pin that does not exist
func Name(pin uint8) string {
	if !Valid(pin) {
		return ""
	}
	port, bit := int(pin)/portWidth, int(pin)%portWidth
	name := "P" + strconv.Itoa(port) + "."
	if bit < 10 {
		name += "0"
	}
	return name + strconv.Itoa(bit)
}

// Names lists every pin name, indexed by pin number
func Names() []string {
	names := make([]string, Count)
	for i := range names {
		names[i] = Name(uint8(i))
	}
	return names
}
