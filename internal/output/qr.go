package output

import (
	"io"

	"github.com/mdp/qrterminal/v3"
	"rsc.io/qr"
)

// RenderAccountQR writes the account address as a compact terminal QR
// code so a companion device can scan it. Writers that are not a
// terminal produce no output.
func RenderAccountQR(w io.Writer, address string) error {
	if !isTerminal(w) {
		return nil
	}

	qrterminal.GenerateWithConfig(address, qrterminal.Config{
		Level:          qr.L,
		Writer:         w,
		QuietZone:      1,
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
	})
	return nil
}
