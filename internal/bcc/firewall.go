package bcc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

// CommandRunner runs a command to completion and returns its exit code and
// output. procexpect.Session implements it.
type CommandRunner interface {
	Run(ctx context.Context, argv ...string) (int, []string, error)
}

// Rule drops incoming TCP traffic to a port.
type Rule struct {
	Port int
}

func (r Rule) spec() []string {
	return []string{"INPUT", "-p", "tcp", "--dport", strconv.Itoa(r.Port), "-j", "DROP"}
}

// Firewall applies iptables rules and remembers them so Revert can take
// every one of them back. Adding rules needs root; with a non-empty sudo
// binary every iptables call goes through it, which requires a sudoers entry
// such as
//
//	<user> ALL = (root) NOPASSWD: /sbin/iptables
type Firewall struct {
	run      CommandRunner
	sudo     string
	iptables string
	log      *slog.Logger
	applied  []Rule
}

// NewFirewall returns a Firewall with no rules applied.
func NewFirewall(run CommandRunner, sudo, iptables string, log *slog.Logger) *Firewall {
	if log == nil {
		log = slog.Default()
	}
	return &Firewall{run: run, sudo: sudo, iptables: iptables, log: log}
}

// Block drops incoming TCP traffic to port.
func (f *Firewall) Block(ctx context.Context, port int) error {
	rule := Rule{Port: port}
	if err := f.iptablesCmd(ctx, "-A", rule); err != nil {
		return fmt.Errorf("add iptables rule for port %d: %w", port, err)
	}
	f.applied = append(f.applied, rule)
	f.log.Info("port blocked", "port", port)
	return nil
}

// Revert deletes every rule Block applied, newest first. Rules that cannot
// be deleted are reported in the returned error and forgotten all the same,
// so a second Revert does nothing.
func (f *Firewall) Revert(ctx context.Context) error {
	var errs []error
	for _, rule := range slices.Backward(f.applied) {
		if err := f.iptablesCmd(ctx, "-D", rule); err != nil {
			errs = append(errs, fmt.Errorf("delete iptables rule for port %d: %w", rule.Port, err))
			continue
		}
		f.log.Info("port unblocked", "port", rule.Port)
	}
	f.applied = nil
	return errors.Join(errs...)
}

// Rules returns the rules currently applied.
func (f *Firewall) Rules() []Rule {
	return slices.Clone(f.applied)
}

func (f *Firewall) iptablesCmd(ctx context.Context, op string, rule Rule) error {
	var argv []string
	if f.sudo != "" {
		argv = append(argv, f.sudo)
	}
	argv = append(argv, f.iptables, op)
	argv = append(argv, rule.spec()...)

	code, out, err := f.run.Run(ctx, argv...)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%s exited with code %d: %s", f.iptables, code, strings.Join(out, "\n"))
	}
	return nil
}
