package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/chzyer/readline"

	"pwmgen/core"
	"pwmgen/host/config"
	"pwmgen/host/mcu"
)

var errUsage = errors.New("wrong number of arguments")

// shell holds the state behind the interactive commands
type shell struct {
	board *mcu.MCU
	cfg   *config.Config
	out   io.Writer
}

// run executes one command line; it returns true when the shell should exit
func (s *shell) run(cmd string, args []string, errOut io.Writer) bool {
	var err error
	switch cmd {
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Goodbye!")
		return true
	case "help", "?":
		s.printHelp()
	case "dict":
		if err = s.requireBoard(); err == nil {
			s.board.GetDictionary().WriteSummary(s.out)
		}
	case "raw":
		if err = s.requireBoard(); err == nil {
			raw := s.board.GetDictionaryRaw()
			fmt.Fprintf(s.out, "Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)
		}
	case "resolve":
		err = runResolve(s.out, args)
	case "pwm":
		err = s.cmdPWM(args)
	case "apply":
		err = s.cmdApply(args)
	case "outputs":
		s.cmdOutputs()
	case "clock":
		err = s.cmdClock()
	case "uptime":
		err = s.cmdUptime()
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for available commands)\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
	}
	return false
}

// requireBoard fails board commands once the port is gone
func (s *shell) requireBoard() error {
	if s.board == nil || !s.board.IsConnected() {
		return mcu.ErrNotConnected
	}
	return nil
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, "\nAvailable commands:")
	fmt.Fprintln(s.out, "  help                   - Show this help message")
	fmt.Fprintln(s.out, "  dict                   - Print dictionary summary")
	fmt.Fprintln(s.out, "  raw                    - Print raw dictionary data")
	fmt.Fprintln(s.out, "  resolve <hz> <duty>    - Compute register values locally")
	fmt.Fprintln(s.out, "  pwm <pin> <hz> <duty>  - Configure a PWM output on the board")
	fmt.Fprintln(s.out, "  apply <output>         - Configure a named output from the config file")
	fmt.Fprintln(s.out, "  outputs                - List configured outputs")
	fmt.Fprintln(s.out, "  clock                  - Read the board clock")
	fmt.Fprintln(s.out, "  uptime                 - Read the board uptime")
	fmt.Fprintln(s.out, "  quit/exit/q            - Exit the program")
	fmt.Fprintln(s.out)
}

func (s *shell) completer() *readline.PrefixCompleter {
	outputs := func(string) []string { return s.cfg.OutputNames() }
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("dict"),
		readline.PcItem("raw"),
		readline.PcItem("resolve"),
		readline.PcItem("pwm"),
		readline.PcItem("apply", readline.PcItemDynamic(outputs)),
		readline.PcItem("outputs"),
		readline.PcItem("clock"),
		readline.PcItem("uptime"),
		readline.PcItem("quit"),
	)
}

func (s *shell) cmdPWM(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: pwm <pin> <hz> <duty>", errUsage)
	}
	pin, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid pin %q: %w", args[0], err)
	}
	freq, duty, err := parseFrequencyDuty(args[1:])
	if err != nil {
		return err
	}
	return s.configure(core.PWMRequest{Pin: uint8(pin), Frequency: float32(freq), DutyCycle: float32(duty)})
}

func (s *shell) cmdApply(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: apply <output>", errUsage)
	}
	req, err := s.cfg.Request(args[0])
	if err != nil {
		return err
	}
	return s.configure(req)
}

func (s *shell) configure(req core.PWMRequest) error {
	if err := s.requireBoard(); err != nil {
		return err
	}
	state, err := s.board.ConfigurePWM(req)
	if err != nil {
		return err
	}
	report := core.NewPWMReport(req, state.Resolution)
	for _, line := range report.Lines() {
		fmt.Fprintln(s.out, line)
	}
	return nil
}

func (s *shell) cmdOutputs() {
	names := s.cfg.OutputNames()
	if len(names) == 0 {
		fmt.Fprintln(s.out, "No outputs configured")
		return
	}
	for _, name := range names {
		o := s.cfg.Outputs[name]
		fmt.Fprintf(s.out, "  %-12s pin=%d frequency=%g duty_cycle=%g\n", name, o.Pin, o.Frequency, o.DutyCycle)
	}
}

func (s *shell) cmdClock() error {
	if err := s.requireBoard(); err != nil {
		return err
	}
	clock, err := s.board.GetClock()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "clock=%d\n", clock)
	return nil
}

func (s *shell) cmdUptime() error {
	if err := s.requireBoard(); err != nil {
		return err
	}
	ticks, err := s.board.GetUptime()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "uptime=%d ticks (%.3f s)\n", ticks, float64(ticks)/core.ClockFreq)
	return nil
}

// runResolve prints the register values the board would pick for
// <hz> <duty>, without a board
func runResolve(out io.Writer, args []string) error {
	freq, duty, err := parseFrequencyDuty(args)
	if err != nil {
		return err
	}
	req := core.QuantizeRequest(core.PWMRequest{Frequency: float32(freq), DutyCycle: float32(duty)})
	res, err := core.ResolvePWM(float64(req.Frequency), float64(req.DutyCycle))
	if err != nil {
		return err
	}

	report := core.NewPWMReport(req, res)
	fmt.Fprintf(out, "Shift: %d\n", res.Shift)
	for _, line := range report.Lines()[1:] {
		fmt.Fprintln(out, line)
	}
	return nil
}

func parseFrequencyDuty(args []string) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("%w: expected <hz> <duty>", errUsage)
	}
	freq, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid frequency %q: %w", args[0], err)
	}
	duty, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid duty cycle %q: %w", args[1], err)
	}
	return freq, duty, nil
}
