package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
)

// Shell provides ishell backed interactive shell around a Board.
type Shell struct {
	Interactive bool

	Shell  *ishell.Shell
	Config *Config
	Board  *Board
}

const (
	shellKey = "$shell"
	prompt   = "uart > "
)

var (
	evalOnly bool

	commands = []*ishell.Cmd{
		&InitCmd,
		&TxCmd,
		&TxHexCmd,
		&RxCmd,
		&InjectCmd,
		&StepCmd,
		&IrqCmd,
		&ServiceCmd,
		&StateCmd,
		&StatsCmd,
		&RunCmd,
		&StopCmd,
		&LineCmd,
		&WireCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// NewShell creates a shell with a fresh Board sized by conf.
func NewShell(conf *Config) (*Shell, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	s := &Shell{
		Interactive: !evalOnly,
		Shell:       ishell.New(),
		Config:      conf,
		Board:       NewBoard(conf.TxSize, conf.RxSize),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s, nil
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Run initializes the board from Config, then evaluates args or starts the
// interactive shell.
func (s *Shell) Run(args ...string) {
	defer s.Board.Close()

	cfg, err := s.Config.UARTConfig()
	if err != nil {
		glog.Exitln(err)
	}
	if err := s.Board.Init(cfg); err != nil {
		glog.Exitln(err)
	}
	if s.Config.LineURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.Board.AttachLine(ctx, s.Config.LineURL)
		cancel()
		if err != nil {
			glog.Exitln(err)
		}
	}

	if len(args) > 0 {
		for _, line := range splitCommands(args) {
			if err := s.Shell.Process(line...); err != nil {
				glog.Exitln(err)
			}
		}
		return
	}
	if s.Interactive {
		s.Shell.Println(s.Board.Describe())
		s.Shell.Run()
		return
	}
	glog.Exitln("command expected")
}

// splitCommands splits "cmd a ; cmd b" argument lists at ";" tokens.
func splitCommands(args []string) [][]string {
	var out [][]string
	var cur []string
	for _, a := range args {
		if a == ";" {
			if len(cur) > 0 {
				out = append(out, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, a)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func formatBytes(p []byte) string {
	if len(p) == 0 {
		return "(none)"
	}
	return fmt.Sprintf("%q [% x]", p, p)
}

var (
	// InitCmd re-initializes the UART.
	InitCmd = ishell.Cmd{
		Name: "init",
		Help: "[8|16|125|150] re-initialize with clock in MHz",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			conf := *s.Config
			if len(c.Args) > 0 {
				conf.Clock = c.Args[0]
			}
			cfg, err := conf.UARTConfig()
			if err != nil {
				c.Err(err)
				return
			}
			if err := s.Board.Init(cfg); err != nil {
				c.Err(err)
				return
			}
			c.Printf("%d Hz, %d baud\n", cfg.Clock.Hz(), cfg.Clock.Baud())
		},
	}

	// TxCmd queues text for transmission.
	TxCmd = ishell.Cmd{
		Name: "tx",
		Help: "TEXT queue bytes for transmission",
		Func: func(c *ishell.Context) {
			p := []byte(strings.Join(c.Args, " "))
			n := ShellFrom(c).Board.UART.TryWrite(p)
			c.Printf("queued %d/%d\n", n, len(p))
		},
	}

	// TxHexCmd queues hex encoded bytes for transmission.
	TxHexCmd = ishell.Cmd{
		Name: "txhex",
		Help: "HEX queue hex encoded bytes for transmission",
		Func: func(c *ishell.Context) {
			p, err := hex.DecodeString(strings.Join(c.Args, ""))
			if err != nil {
				c.Err(err)
				return
			}
			n := ShellFrom(c).Board.UART.TryWrite(p)
			c.Printf("queued %d/%d\n", n, len(p))
		},
	}

	// RxCmd drains the receive ring.
	RxCmd = ishell.Cmd{
		Name: "rx",
		Help: "read everything buffered",
		Func: func(c *ishell.Context) {
			u := ShellFrom(c).Board.UART
			buf := make([]byte, u.Buffered())
			n := u.TryRead(buf)
			c.Println(formatBytes(buf[:n]))
		},
	}

	// InjectCmd queues bytes on the incoming line.
	InjectCmd = ishell.Cmd{
		Name: "inject",
		Help: "TEXT bytes arriving from the remote end, one per step",
		Func: func(c *ishell.Context) {
			p := []byte(strings.Join(c.Args, " "))
			ShellFrom(c).Board.Periph.Inject(p)
			c.Printf("injected %d\n", len(p))
		},
	}

	// StepCmd advances the simulated time.
	StepCmd = ishell.Cmd{
		Name: "step",
		Help: "[N] advance N character times (default 1)",
		Func: func(c *ishell.Context) {
			n := 1
			if len(c.Args) > 0 {
				v, err := strconv.Atoi(c.Args[0])
				if err != nil || v < 1 {
					c.Err(fmt.Errorf("invalid step count %q", c.Args[0]))
					return
				}
				n = v
			}
			out, err := ShellFrom(c).Board.Step(n)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println("wire:", formatBytes(out))
		},
	}

	// IrqCmd forces an interrupt.
	IrqCmd = ishell.Cmd{
		Name: "irq",
		Help: "tx|rx force an interrupt regardless of the enable bits",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: irq tx|rx"))
				return
			}
			p := ShellFrom(c).Board.Periph
			switch c.Args[0] {
			case "tx":
				p.Raise(true, false)
			case "rx":
				p.Raise(false, true)
			default:
				c.Err(fmt.Errorf("unknown interrupt %q", c.Args[0]))
			}
		},
	}

	// ServiceCmd runs one polling fallback pass.
	ServiceCmd = ishell.Cmd{
		Name: "service",
		Help: "run the polling fallback once",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Board.UART.Service()
		},
	}

	// StateCmd prints driver and register state.
	StateCmd = ishell.Cmd{
		Name: "state",
		Help: "show driver and register state",
		Func: func(c *ishell.Context) {
			c.Println(ShellFrom(c).Board.Describe())
		},
	}

	// StatsCmd prints counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "[reset] show or reset the counters",
		Func: func(c *ishell.Context) {
			b := ShellFrom(c).Board
			if len(c.Args) > 0 && c.Args[0] == "reset" {
				b.UART.ResetStats()
				return
			}
			c.Println(b.DescribeStats())
		},
	}

	// RunCmd starts the free-running clock.
	RunCmd = ishell.Cmd{
		Name: "run",
		Help: "[SPEEDUP] clock the peripheral in real time",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			speedup := s.Config.Speedup
			if len(c.Args) > 0 {
				v, err := strconv.Atoi(c.Args[0])
				if err != nil || v < 1 {
					c.Err(fmt.Errorf("invalid speedup %q", c.Args[0]))
					return
				}
				speedup = v
			}
			if err := s.Board.Start(speedup); err != nil {
				c.Err(err)
			}
		},
	}

	// StopCmd stops the free-running clock.
	StopCmd = ishell.Cmd{
		Name: "stop",
		Help: "stop the free-running clock",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Board.Stop()
		},
	}

	// LineCmd attaches or detaches a remote line.
	LineCmd = ishell.Cmd{
		Name: "line",
		Help: "URL|off carry the wire to mqtt://, ws:// or loopback:",
		Func: func(c *ishell.Context) {
			b := ShellFrom(c).Board
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: line URL|off"))
				return
			}
			if c.Args[0] == "off" {
				b.DetachLine()
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := b.AttachLine(ctx, c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// WireCmd dumps bytes shifted out while no line was attached.
	WireCmd = ishell.Cmd{
		Name: "wire",
		Help: "show and clear the captured wire output",
		Func: func(c *ishell.Context) {
			c.Println(formatBytes(ShellFrom(c).Board.Wire()))
		},
	}
)
