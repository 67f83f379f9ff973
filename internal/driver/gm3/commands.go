// internal/driver/gm3/commands.go
package gm3

// Command is one of the gaussmeter's single-byte opcodes. The set is
// closed; anything else is rejected before touching the wire.
type Command byte

const (
	CmdIdentifyProperties Command = 0x01
	CmdIdentifySettings   Command = 0x02
	CmdStreamData         Command = 0x03
	CmdResetTime          Command = 0x04
	CmdKillAllProcesses   Command = 0xFF
)

// Acknowledgment codes returned after each response frame
const (
	// AckReceived confirms receipt of a request. During a multi-part
	// exchange it doubles as "more data follows".
	AckReceived byte = 0x08
	// AckDone terminates a multi-part exchange.
	AckDone byte = 0x07
)

// opcodeRepeat is how many times the opcode byte is repeated on the
// wire; the instrument expects every command to fill a 6-byte slot.
const opcodeRepeat = 6

// responseLengths maps each query command to its fixed payload length.
// The length depends only on the command, never on the response content.
var responseLengths = map[Command]int{
	CmdIdentifyProperties: 20,
	CmdIdentifySettings:   20,
	CmdStreamData:         30,
	CmdResetTime:          31,
}

// multiPart marks the commands whose responses span several frames,
// fetched with continue opcodes until the instrument acknowledges AckDone.
var multiPart = map[Command]bool{
	CmdIdentifyProperties: true,
	CmdIdentifySettings:   true,
}

// frame returns the command's 6-byte wire frame
func (c Command) frame() []byte {
	frame := make([]byte, opcodeRepeat)
	for i := range frame {
		frame[i] = byte(c)
	}
	return frame
}

// continueFrame is the continuation request for multi-part responses
var continueFrame = Command(AckReceived).frame()

// String returns the command's manual name
func (c Command) String() string {
	switch c {
	case CmdIdentifyProperties:
		return "ID_METER_PROP"
	case CmdIdentifySettings:
		return "ID_METER_SETT"
	case CmdStreamData:
		return "STREAM_DATA"
	case CmdResetTime:
		return "RESET_TIME"
	case CmdKillAllProcesses:
		return "KILL_ALL_PROCESS"
	default:
		return "UNKNOWN"
	}
}
