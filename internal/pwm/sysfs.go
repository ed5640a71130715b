package pwm

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultSysfsRoot is the Linux PWM class directory.
const DefaultSysfsRoot = "/sys/class/pwm"

// exportWait bounds how long Export waits for udev to create the channel
// directory.
const exportWait = 500 * time.Millisecond

// Sysfs drives one channel of a pwmchip through sysfs.
// Compare values and the period are in nanoseconds.
type Sysfs struct {
	owner

	root     string
	chip     int
	channel  int
	periodNs int
	log      *slog.Logger
}

// NewSysfs describes chip/channel under root (DefaultSysfsRoot if empty).
// Nothing is written until Export.
func NewSysfs(root string, chip, channel, periodNs int, log *slog.Logger) *Sysfs {
	if root == "" {
		root = DefaultSysfsRoot
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Sysfs{
		root:     root,
		chip:     chip,
		channel:  channel,
		periodNs: periodNs,
		log:      log.With("pwmchip", chip, "channel", channel),
	}
}

func (s *Sysfs) chipDir() string {
	return filepath.Join(s.root, "pwmchip"+strconv.Itoa(s.chip))
}

func (s *Sysfs) channelDir() string {
	return filepath.Join(s.chipDir(), "pwm"+strconv.Itoa(s.channel))
}

// Export makes the channel available and programs its period.
// It is the acquire half of the channel lifecycle.
func (s *Sysfs) Export() error {
	dir := s.channelDir()
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := s.write(filepath.Join(s.chipDir(), "export"), s.channel); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := waitForDir(dir, exportWait); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	if err := s.write(filepath.Join(dir, "duty_cycle"), 0); err != nil {
		return fmt.Errorf("reset duty cycle: %w", err)
	}
	if err := s.write(filepath.Join(dir, "period"), s.periodNs); err != nil {
		return fmt.Errorf("set period: %w", err)
	}
	return nil
}

// Unexport disables and removes the channel. It is the release half of the
// channel lifecycle; failures are logged.
func (s *Sysfs) Unexport() {
	if err := s.write(filepath.Join(s.channelDir(), "enable"), 0); err != nil {
		s.log.Warn("pwm disable failed", "error", err)
	}
	if err := s.write(filepath.Join(s.chipDir(), "unexport"), s.channel); err != nil {
		s.log.Warn("pwm unexport failed", "error", err)
	}
}

// Start enables the output.
func (s *Sysfs) Start() {
	s.writeLogged("enable", 1)
}

// Stop disables the output.
func (s *Sysfs) Stop() {
	s.writeLogged("enable", 0)
}

// SetCompare writes the duty cycle in nanoseconds.
func (s *Sysfs) SetCompare(v int) {
	s.writeLogged("duty_cycle", v)
}

// Period returns the configured period in nanoseconds.
func (s *Sysfs) Period() int {
	return s.periodNs
}

func (s *Sysfs) writeLogged(attr string, v int) {
	if err := s.write(filepath.Join(s.channelDir(), attr), v); err != nil {
		s.log.Warn("pwm write failed", "attr", attr, "error", err)
	}
}

func (s *Sysfs) write(path string, v int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(v)), 0o644)
}

func waitForDir(dir string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(dir); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s did not appear within %v", dir, timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
