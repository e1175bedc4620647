package at

const (
	// Terminal Control
	CR     = "\r"
	CRLF   = "\r\n"
	Prompt = "> "

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// URCs (Unsolicited Result Codes)
	UrcDownlink      = "+NNMI:"
	UrcSocketMessage = "+NSONMI:"
	UrcSocketClosed  = "+NSOCLI:"
	UrcReboot        = "REBOOT_"
	UrcCall          = "RING"

	// Commands issued while bringing a modem up
	CmdAt            = "AT"
	CmdEchoOn        = "ATE1"
	CmdEchoOff       = "ATE0"
	CmdVerboseErrors = "AT+CMEE=1"
	CmdSimStatus     = "AT+CPIN?"

	// SIM states reported by +CPIN
	SimReady = "READY"
	SimPin   = "SIM PIN"
)

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+NBAND: ...)
	TypePrompt                     // Data input prompt
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeURC:
		return "urc"
	case TypeData:
		return "data"
	case TypePrompt:
		return "prompt"
	}
	return "unknown"
}
