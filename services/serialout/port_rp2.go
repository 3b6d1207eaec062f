//go:build rp2040 || rp2350

package serialout

import (
	"errors"
	"io"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

type uartPort struct{ u *uartx.UART }

func (p uartPort) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p uartPort) Close() error                { return nil }

// OpenPort configures "uart0" or "uart1" on their default pins at baud.
func OpenPort(name string, baud uint32) (io.WriteCloser, error) {
	var (
		hw     *uartx.UART
		tx, rx machine.Pin
	)
	switch name {
	case "uart0":
		hw, tx, rx = uartx.UART0, machine.UART0_TX_PIN, machine.UART0_RX_PIN
	case "uart1":
		hw, tx, rx = uartx.UART1, machine.UART1_TX_PIN, machine.UART1_RX_PIN
	default:
		return nil, errors.New("serialout: unknown uart " + name)
	}
	if err := hw.Configure(uartx.UARTConfig{BaudRate: baud, TX: tx, RX: rx}); err != nil {
		return nil, err
	}
	return uartPort{hw}, nil
}
