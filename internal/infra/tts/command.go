package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// CommandSpeaker speaks through a local synthesizer binary (espeak, say).
type CommandSpeaker struct {
	command string
	rate    int
	voice   string
}

// NewCommandSpeaker picks say on macOS and espeak elsewhere when command is empty.
func NewCommandSpeaker(command string, rate int, voice string) *CommandSpeaker {
	if command == "" {
		command = DefaultCommand(runtime.GOOS)
	}
	return &CommandSpeaker{
		command: command,
		rate:    rate,
		voice:   voice,
	}
}

func DefaultCommand(goos string) string {
	if goos == "darwin" {
		return "say"
	}
	return "espeak"
}

// Args builds the command line for text. say uses -r for words per minute,
// espeak and espeak-ng use -s.
func (s *CommandSpeaker) Args(text string) []string {
	rateFlag := "-s"
	if strings.HasSuffix(s.command, "say") {
		rateFlag = "-r"
	}

	var args []string
	if s.rate > 0 {
		args = append(args, rateFlag, strconv.Itoa(s.rate))
	}
	if s.voice != "" {
		args = append(args, "-v", s.voice)
	}
	// "--" keeps text starting with a dash from being read as a flag.
	return append(args, "--", text)
}

// Speak blocks until the synthesizer exits.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, s.command, s.Args(text)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("running %s: %w: %s", s.command, err, msg)
		}
		return fmt.Errorf("running %s: %w", s.command, err)
	}
	return nil
}
