package protocol

// Type is the value of the "type" field that tags every message.
type Type string

const (
	TypeInit   Type = "init"
	TypeInput  Type = "input"
	TypeResize Type = "resize"
	TypeClose  Type = "close"

	TypeOutput Type = "output"
	TypeExit   Type = "exit"
	TypeError  Type = "error"
)

// MaxDimension bounds terminal columns and rows.
const MaxDimension = 65535

// Message is an inbound control message. The set of implementations is closed.
type Message interface {
	Type() Type
	control()
}

// Init requests creation of the terminal session. Zero values mean "use the
// default": an empty Shell or Cwd, a nil Args, or a zero Cols/Rows.
type Init struct {
	Shell string
	Args  []string
	Cwd   string
	Cols  int
	Rows  int
}

// Input carries keystrokes to forward verbatim to the pty.
type Input struct {
	Data string
}

// Resize changes the terminal dimensions. Both values are always in
// [1, MaxDimension] once decoded.
type Resize struct {
	Cols int
	Rows int
}

// Close requests termination of the child process.
type Close struct{}

func (Init) Type() Type   { return TypeInit }
func (Input) Type() Type  { return TypeInput }
func (Resize) Type() Type { return TypeResize }
func (Close) Type() Type  { return TypeClose }

func (Init) control()   {}
func (Input) control()  {}
func (Resize) control() {}
func (Close) control()  {}

// OutputEvent carries a coalesced chunk of pty output.
type OutputEvent struct {
	Type Type   `json:"type"`
	Data string `json:"data"`
}

// ExitEvent is the terminal notice that the child process is gone.
// ExitCode is nil when the child was killed by a signal; Signal is nil otherwise.
type ExitEvent struct {
	Type     Type    `json:"type"`
	ExitCode *int    `json:"exitCode"`
	Signal   *string `json:"signal"`
}

// ErrorEvent reports a fatal spawn failure.
type ErrorEvent struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}
