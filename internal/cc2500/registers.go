// Package cc2500 talks to a TI CC2500 2.4 GHz transceiver over SPI.
//
// All transactions are synchronous. Each one selects the chip, waits for the
// chip-ready indication on SO, shifts a header byte and its payload, releases
// chip select and then honors a fixed settle delay.
package cc2500

// Header flags
const (
	ReadFlag  byte = 0x80
	BurstFlag byte = 0x40
)

// Configuration registers
const (
	IOCFG2   byte = 0x00
	IOCFG1   byte = 0x01
	IOCFG0   byte = 0x02
	FIFOTHR  byte = 0x03
	SYNC1    byte = 0x04
	SYNC0    byte = 0x05
	PKTLEN   byte = 0x06
	PKTCTRL1 byte = 0x07
	PKTCTRL0 byte = 0x08
	ADDR     byte = 0x09
	CHANNR   byte = 0x0A
	FSCTRL1  byte = 0x0B
	FSCTRL0  byte = 0x0C
	FREQ2    byte = 0x0D
	FREQ1    byte = 0x0E
	FREQ0    byte = 0x0F
	MDMCFG4  byte = 0x10
	MDMCFG3  byte = 0x11
	MDMCFG2  byte = 0x12
	MDMCFG1  byte = 0x13
	MDMCFG0  byte = 0x14
	DEVIATN  byte = 0x15
	MCSM2    byte = 0x16
	MCSM1    byte = 0x17
	MCSM0    byte = 0x18
	FOCCFG   byte = 0x19
	BSCFG    byte = 0x1A
	AGCCTRL2 byte = 0x1B
	AGCCTRL1 byte = 0x1C
	AGCCTRL0 byte = 0x1D
	WOREVT1  byte = 0x1E
	WOREVT0  byte = 0x1F
	WORCTRL  byte = 0x20
	FREND1   byte = 0x21
	FREND0   byte = 0x22
	FSCAL3   byte = 0x23
	FSCAL2   byte = 0x24
	FSCAL1   byte = 0x25
	FSCAL0   byte = 0x26
	RCCTRL1  byte = 0x27
	RCCTRL0  byte = 0x28
	FSTEST   byte = 0x29
	TEST2    byte = 0x2C
	TEST1    byte = 0x2D
	TEST0    byte = 0x2E
	PATABLE  byte = 0x3E
	FIFO     byte = 0x3F
)

// Command strobes
const (
	SRES    byte = 0x30 // reset chip
	SFSTXON byte = 0x31
	SXOFF   byte = 0x32
	SCAL    byte = 0x33
	SRX     byte = 0x34 // enable RX
	STX     byte = 0x35 // enable TX
	SIDLE   byte = 0x36 // exit RX/TX
	SWOR    byte = 0x38
	SPWD    byte = 0x39
	SFRX    byte = 0x3A // flush RX FIFO, only in IDLE or RXFIFO_OVERFLOW
	SFTX    byte = 0x3B // flush TX FIFO, only in IDLE or TXFIFO_UNDERFLOW
	SWORRST byte = 0x3C
	SNOP    byte = 0x3D
)

// IsStrobe reports whether a header byte is a command strobe.
func IsStrobe(header byte) bool {
	return header&ReadFlag == 0 && header >= SRES && header <= SNOP
}

// Register is a single (address, value) configuration write.
type Register struct {
	Addr  byte
	Value byte
}

// MaxPower is the PATABLE value for the highest output power.
const MaxPower byte = 0xFF

// AnslutaConfig puts the transceiver into the configuration used by IKEA
// Ansluta remotes: 2.4 GHz channel 0x10, MSK, variable packet length with
// the length byte first in the FIFO and no CRC.
var AnslutaConfig = []Register{
	{IOCFG2, 0x29},
	{IOCFG0, 0x06},
	{PKTLEN, 0xFF},
	{PKTCTRL1, 0x04},
	{PKTCTRL0, 0x05},
	{ADDR, 0x01},
	{CHANNR, 0x10},
	{FSCTRL1, 0x09},
	{FSCTRL0, 0x00},
	{FREQ2, 0x5D},
	{FREQ1, 0x93},
	{FREQ0, 0xB1},
	{MDMCFG4, 0x2D},
	{MDMCFG3, 0x3B},
	{MDMCFG2, 0x73},
	{MDMCFG1, 0xA2},
	{MDMCFG0, 0xF8},
	{DEVIATN, 0x01},
	{MCSM2, 0x07},
	{MCSM1, 0x30},
	{MCSM0, 0x18},
	{FOCCFG, 0x1D},
	{BSCFG, 0x1C},
	{AGCCTRL2, 0xC7},
	{AGCCTRL1, 0x00},
	{AGCCTRL0, 0xB2},
	{WOREVT1, 0x87},
	{WOREVT0, 0x6B},
	{WORCTRL, 0xF8},
	{FREND1, 0xB6},
	{FREND0, 0x10},
	{FSCAL3, 0xEA},
	{FSCAL2, 0x0A},
	{FSCAL1, 0x00},
	{FSCAL0, 0x11},
	{RCCTRL1, 0x41},
	{RCCTRL0, 0x00},
	{FSTEST, 0x59},
	{TEST2, 0x88},
	{TEST1, 0x31},
	{TEST0, 0x0B},
}
