package stack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Runner executes an external command. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Service is one row of `docker compose ps`.
type Service struct {
	Name    string
	Service string
	State   string
	Health  string
	Status  string
}

// Healthy reports whether the container is running and, when it defines a
// healthcheck, passing it.
func (s Service) Healthy() bool {
	if s.State != "running" {
		return false
	}
	return s.Health == "" || s.Health == "healthy"
}

// Compose drives the application stack through the docker compose CLI.
type Compose struct {
	file    string
	command []string
	runner  Runner
	stdout  io.Writer
	stderr  io.Writer
	logger  *zap.Logger
}

type Option func(*Compose)

func WithRunner(r Runner) Option {
	return func(c *Compose) { c.runner = r }
}

func WithOutput(stdout, stderr io.Writer) Option {
	return func(c *Compose) { c.stdout, c.stderr = stdout, stderr }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Compose) { c.logger = l }
}

// WithCommand overrides the compose invocation, e.g. "docker-compose".
func WithCommand(command ...string) Option {
	return func(c *Compose) { c.command = command }
}

func NewCompose(file string, opts ...Option) *Compose {
	c := &Compose{
		file:   file,
		runner: execRunner{},
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.command) == 0 {
		c.command = detectCommand()
	}
	return c
}

// detectCommand prefers the compose plugin and falls back to the standalone binary.
func detectCommand() []string {
	if _, err := exec.LookPath("docker"); err == nil {
		return []string{"docker", "compose"}
	}
	return []string{"docker-compose"}
}

func (c *Compose) File() string {
	return c.file
}

func (c *Compose) Up(ctx context.Context, pull bool) error {
	args := []string{"up", "-d"}
	if pull {
		args = append(args, "--pull", "always")
	}
	return c.run(ctx, c.stdout, c.stderr, args...)
}

func (c *Compose) Down(ctx context.Context, volumes bool) error {
	args := []string{"down"}
	if volumes {
		args = append(args, "-v")
	}
	return c.run(ctx, c.stdout, c.stderr, args...)
}

func (c *Compose) Logs(ctx context.Context, follow bool, services ...string) error {
	args := []string{"logs", "--tail", "200"}
	if follow {
		args = append(args, "-f")
	}
	args = append(args, services...)
	return c.run(ctx, c.stdout, c.stderr, args...)
}

func (c *Compose) Status(ctx context.Context) ([]Service, error) {
	var out, errOut bytes.Buffer
	if err := c.run(ctx, &out, &errOut, "ps", "--all", "--format", "json"); err != nil {
		if msg := strings.TrimSpace(errOut.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return parseServices(out.String()), nil
}

func (c *Compose) run(ctx context.Context, stdout, stderr io.Writer, args ...string) error {
	full := append([]string{}, c.command[1:]...)
	full = append(full, "-f", c.file)
	full = append(full, args...)

	c.logger.Debug("running compose", zap.String("command", c.command[0]), zap.Strings("args", full))
	if err := c.runner.Run(ctx, stdout, stderr, c.command[0], full...); err != nil {
		return fmt.Errorf("%s %s failed: %w", strings.Join(c.command, " "), args[0], err)
	}
	return nil
}

// parseServices accepts both output styles of `ps --format json`: one JSON
// array (older compose releases) or one object per line.
func parseServices(out string) []Service {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}

	var services []Service
	add := func(v gjson.Result) {
		services = append(services, Service{
			Name:    v.Get("Name").String(),
			Service: v.Get("Service").String(),
			State:   strings.ToLower(v.Get("State").String()),
			Health:  strings.ToLower(v.Get("Health").String()),
			Status:  v.Get("Status").String(),
		})
	}

	if parsed := gjson.Parse(out); parsed.IsArray() {
		parsed.ForEach(func(_, v gjson.Result) bool {
			add(v)
			return true
		})
		return services
	}

	gjson.ForEachLine(out, func(line gjson.Result) bool {
		if line.IsObject() {
			add(line)
		}
		return true
	})
	return services
}
