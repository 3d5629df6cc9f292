package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"

	"pwmgen/host/config"
	"pwmgen/host/mcu"
)

var (
	configPath = flag.String("config", "", "YAML configuration file")
	device     = flag.String("device", "", "Serial device path (overrides the config file)")
	baud       = flag.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
	resolve    = flag.Bool("resolve", false, "Resolve <hz> <duty> offline and exit")
	apply      = flag.String("apply", "", "Apply a configured output and exit")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *resolve {
		if err := runResolve(os.Stdout, flag.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("configuration", slog.Any("error", err))
		os.Exit(1)
	}

	board := mcu.NewMCU(logger)
	board.SetResponseTimeout(cfg.ResponseTimeout)
	if err := board.ConnectWithConfig(cfg.SerialPort()); err != nil {
		logger.Error("connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer board.Close()

	if err := board.RetrieveDictionary(); err != nil {
		logger.Error("dictionary", slog.Any("error", err))
		os.Exit(1)
	}

	sh := &shell{board: board, cfg: cfg, out: os.Stdout}

	if *apply != "" {
		if err := sh.cmdApply([]string{*apply}); err != nil {
			logger.Error("apply", slog.String("output", *apply), slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := runInteractive(sh, logger); err != nil {
		logger.Error("shell", slog.Any("error", err))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	return cfg, cfg.Validate()
}

func runInteractive(sh *shell, logger *slog.Logger) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pwmgen> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete:    sh.completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	sh.out = rl.Stdout()
	fmt.Fprintln(sh.out, "Enter commands (type 'help' for available commands, 'quit' to exit):")

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		if done := sh.run(parts[0], parts[1:], rl.Stderr()); done {
			return nil
		}
		logger.Debug("command done", slog.String("cmd", parts[0]))
	}
}
