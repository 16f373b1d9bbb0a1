// Package busctl talks to D-Bus services through the busctl CLI.
package busctl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Bus selects the user session bus or the system bus.
type Bus int

const (
	User Bus = iota
	System
)

func (b Bus) flag() string {
	if b == System {
		return "--system"
	}
	return "--user"
}

// Method addresses one D-Bus method.
type Method struct {
	Service   string
	Path      string
	Interface string
	Member    string
}

// Value is a busctl JSON-encoded variant or reply: a signature and its data.
type Value struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the value's data into out.
func (v Value) Decode(out any) error {
	if len(v.Data) == 0 {
		return fmt.Errorf("empty %q value", v.Type)
	}
	return json.Unmarshal(v.Data, out)
}

// Message is one line of `busctl monitor --json=short`.
type Message struct {
	Type        string `json:"type"`
	Sender      string `json:"sender"`
	Destination string `json:"destination"`
	Path        string `json:"path"`
	Interface   string `json:"interface"`
	Member      string `json:"member"`
	Payload     Value  `json:"payload"`
}

// Run executes busctl against bus and returns its combined output.
func Run(ctx context.Context, bus Bus, args ...string) ([]byte, error) {
	full := append([]string{bus.flag()}, args...)
	out, err := exec.CommandContext(ctx, "busctl", full...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("busctl %s failed: %w", strings.Join(args, " "), err)
		}
		return nil, fmt.Errorf("busctl %s failed: %w (%s)", strings.Join(args, " "), err, trimmed)
	}
	return out, nil
}

// Call invokes m with a signature and its flattened busctl arguments.
func Call(ctx context.Context, bus Bus, m Method, signature string, args ...string) ([]byte, error) {
	full := []string{"call", m.Service, m.Path, m.Interface, m.Member}
	if signature != "" {
		full = append(full, signature)
		full = append(full, args...)
	}
	return Run(ctx, bus, full...)
}

// CallJSON invokes m with JSON output and decodes the reply data into out.
func CallJSON(ctx context.Context, bus Bus, m Method, out any, signature string, args ...string) error {
	full := []string{"--json=short", "call", m.Service, m.Path, m.Interface, m.Member}
	if signature != "" {
		full = append(full, signature)
		full = append(full, args...)
	}
	raw, err := Run(ctx, bus, full...)
	if err != nil {
		return err
	}

	var reply Value
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("decode %s.%s reply: %w", m.Interface, m.Member, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(reply.Data, out); err != nil {
		return fmt.Errorf("decode %s.%s data: %w", m.Interface, m.Member, err)
	}
	return nil
}

// GetProperty reads one property and decodes its data into out.
func GetProperty(ctx context.Context, bus Bus, service string, path string, iface string, name string, out any) error {
	raw, err := Run(ctx, bus, "--json=short", "get-property", service, path, iface, name)
	if err != nil {
		return err
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode %s.%s: %w", iface, name, err)
	}
	return v.Decode(out)
}

// Monitor streams messages matching the given match rules until ctx ends or
// busctl exits. Lines that do not decode are skipped.
func Monitor(ctx context.Context, bus Bus, matches []string, fn func(Message)) error {
	args := []string{bus.flag(), "--json=short", "monitor"}
	for _, match := range matches {
		args = append(args, "--match="+match)
	}

	cmd := exec.CommandContext(ctx, "busctl", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("busctl monitor pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start busctl monitor: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		fn(msg)
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if scanErr != nil {
		return fmt.Errorf("read busctl monitor: %w", scanErr)
	}
	if waitErr != nil {
		return fmt.Errorf("busctl monitor exited: %w", waitErr)
	}
	return nil
}
