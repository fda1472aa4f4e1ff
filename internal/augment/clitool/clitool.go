// Package clitool runs an external command as a metadata provider, parsing
// its standard output with a configurable parser.
package clitool

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"bindery/internal/augment"
	"bindery/internal/config"
	"bindery/internal/logging"
)

var commandContext = exec.CommandContext

// Parser turns command output into a partial metadata result.
type Parser func(output []byte) (augment.PartialMetadata, error)

// parsers is the closed registry of output parsers.
var parsers = map[string]Parser{
	"json":        parseJSON,
	"calibre_opf": parseCalibreOPF,
}

// Provider invokes one configured external command per fetch.
type Provider struct {
	name       string
	command    string
	args       []string
	titleFlag  string
	authorFlag string
	timeout    time.Duration
	parse      Parser
	logger     *slog.Logger
}

// New builds a provider from one cli_providers config entry.
func New(cfg config.CLIProvider, logger *slog.Logger) (*Provider, error) {
	parse, ok := parsers[cfg.Parser]
	if !ok {
		return nil, augment.Wrap(augment.ErrConfiguration, cfg.Name, "init",
			fmt.Sprintf("unknown parser %q", cfg.Parser), nil)
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, augment.Wrap(augment.ErrConfiguration, cfg.Name, "init", "command is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Provider{
		name:       cfg.Name,
		command:    cfg.Command,
		args:       cfg.Args,
		titleFlag:  cfg.TitleFlag,
		authorFlag: cfg.AuthorFlag,
		timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		parse:      parse,
		logger:     logger,
	}, nil
}

// Name implements augment.Provider.
func (p *Provider) Name() string { return p.name }

// Fetch runs the command and parses its output. A non-zero exit code or
// unparsable output is a permanent failure for this invocation; only a
// context timeout counts as transient.
func (p *Provider) Fetch(ctx context.Context, req augment.Request) (augment.PartialMetadata, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	args := p.buildArgs(req)
	cmd := commandContext(ctx, p.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return augment.PartialMetadata{}, augment.Wrap(augment.ErrTransient, p.name, "run", "command timed out", ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrPermanent, p.name, "run", detail, err)
	}

	result, err := p.parse(stdout.Bytes())
	if err != nil {
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrPermanent, p.name, "parse", "", err)
	}
	p.logger.Debug("command output parsed",
		logging.String("book_id", req.BookID),
		logging.String("command", p.command))
	return result, nil
}

// buildArgs appends the title and author hints behind their configured
// flags. Without a title flag the title rides as a positional argument.
func (p *Provider) buildArgs(req augment.Request) []string {
	args := append([]string(nil), p.args...)
	if req.Title != "" {
		if p.titleFlag != "" {
			args = append(args, p.titleFlag, req.Title)
		} else {
			args = append(args, req.Title)
		}
	}
	if p.authorFlag != "" && len(req.Authors) > 0 {
		args = append(args, p.authorFlag, strings.Join(req.Authors, " & "))
	}
	return args
}

var _ augment.Provider = (*Provider)(nil)
