package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"nfcescan/internal/coordinator"
	"nfcescan/internal/core"
	"nfcescan/internal/log"
)

// errQuit ends the read loop.
var errQuit = errors.New("quit")

// Interactive reports whether f is a terminal, in which case the shell
// prints a prompt.
func Interactive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args string) error
}

// Shell is a line-oriented front end to a Coordinator. Every command maps
// to one coordinator operation followed by a render of the affected view.
type Shell struct {
	out    io.Writer
	prompt bool
	logger *log.Logger

	mu sync.Mutex // serializes writes to out

	coord    *coordinator.Coordinator
	health   HealthChecker
	commands map[string]command
}

// NewShell creates a shell writing to out. Wire Notify into the
// coordinator options before calling Run.
func NewShell(out io.Writer, prompt bool, logger *log.Logger) *Shell {
	if logger == nil {
		logger = log.Discard()
	}
	return &Shell{out: out, prompt: prompt, logger: logger.WithComponent(log.ComponentShell)}
}

// Notify prints a coordinator notice. It is safe to call from any goroutine.
func (s *Shell) Notify(n coordinator.Notice) {
	mark := "•"
	switch n.Level {
	case coordinator.LevelSuccess:
		mark = "✔"
	case coordinator.LevelError:
		mark = "✖"
	}
	s.printf("%s %s\n", mark, n.Message)
}

func (s *Shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) write(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.out, text)
}

// Run reads commands from in until EOF, "quit" or ctx ends.
func (s *Shell) Run(ctx context.Context, coord *coordinator.Coordinator, health HealthChecker, in io.Reader) error {
	s.coord = coord
	s.health = health
	s.commands = s.commandTable()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if s.prompt {
			s.write("nfce> ")
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if err := s.Exec(ctx, line); errors.Is(err, errQuit) {
				return nil
			}
		}
	}
}

// Exec runs one command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	name, args, _ := strings.Cut(line, " ")
	cmd, ok := s.commands[strings.ToLower(name)]
	s.logger.Debug("Shell command", "command", name, "known", ok)
	if !ok {
		s.printf("Comando desconhecido %q. Digite help.\n", name)
		return nil
	}
	err := cmd.run(ctx, strings.TrimSpace(args))
	var usage usageError
	if errors.As(err, &usage) {
		s.printf("Uso: %s\n", cmd.usage)
		return nil
	}
	return err
}

type usageError struct{}

func (usageError) Error() string { return "usage" }

func (s *Shell) commandTable() map[string]command {
	c := s.coord
	cmds := map[string]command{
		"help": {"help", "lista os comandos", func(context.Context, string) error {
			s.renderHelp()
			return nil
		}},
		"quit": {"quit", "sai", func(context.Context, string) error { return errQuit }},
		"health": {"health", "verifica o serviço", func(ctx context.Context, _ string) error {
			h, err := s.health.Health(ctx)
			if err != nil {
				s.printf("✖ Serviço indisponível: %v\n", err)
				return nil
			}
			s.printf("Serviço: %s\n", h.Status)
			return nil
		}},

		"list": {"list [all|last7days|last30days|thisMonth]", "notas pelo filtro de data", func(ctx context.Context, args string) error {
			f := core.FilterAll
			if args != "" {
				var err error
				if f, err = core.ParseDateFilter(args); err != nil {
					return usageError{}
				}
			}
			if c.SelectDateFilter(ctx, f) == nil {
				s.renderList(c.Snapshot())
			}
			return nil
		}},
		"search": {"search <termo>", "busca produtos em todo o histórico", func(ctx context.Context, args string) error {
			if c.SubmitSearch(ctx, args) == nil {
				s.renderList(c.Snapshot())
			}
			return nil
		}},
		"clear": {"clear", "limpa a busca", func(ctx context.Context, _ string) error {
			if c.ClearSearch(ctx) == nil {
				s.renderList(c.Snapshot())
			}
			return nil
		}},
		"refresh": {"refresh", "recarrega a lista ativa", func(ctx context.Context, _ string) error {
			if c.Refresh(ctx) == nil {
				s.renderList(c.Snapshot())
			}
			return nil
		}},

		"open": {"open <nota_id>", "abre uma nota", func(ctx context.Context, args string) error {
			id, err := parseID(args)
			if err != nil {
				return err
			}
			snap := c.Snapshot()
			if snap.Mode.Kind == coordinator.ModeReceipts {
				for _, r := range snap.Receipts {
					if r.ID == id {
						c.OpenReceipt(r)
						s.renderReceipt(r, 0)
						return nil
					}
				}
			}
			if r, err := c.OpenReceiptByID(ctx, id); err == nil {
				s.renderReceipt(r, c.Snapshot().PendingItem)
			}
			return nil
		}},
		"close": {"close", "fecha a nota aberta", func(context.Context, string) error {
			c.CloseReceipt()
			return nil
		}},

		"cats": {"cats", "lista as categorias", func(ctx context.Context, _ string) error {
			if cats, err := c.LoadCategories(ctx); err == nil {
				s.renderCategories(cats)
			}
			return nil
		}},
		"pick": {"pick <item_id>", "escolhe um item para recategorizar", func(ctx context.Context, args string) error {
			id, err := parseID(args)
			if err != nil {
				return err
			}
			c.BeginRecategorize(id)
			s.printf("Item %d selecionado. Use recat %d <categoria_id> ou newcat <nome> <emoji>.\n", id, id)
			return nil
		}},
		"unpick": {"unpick", "cancela a recategorização pendente", func(context.Context, string) error {
			c.CancelRecategorize()
			return nil
		}},
		"recat": {"recat <item_id> <categoria_id>", "muda a categoria de um item", func(ctx context.Context, args string) error {
			f := strings.Fields(args)
			if len(f) != 2 {
				return usageError{}
			}
			item, err1 := parseID(f[0])
			cat, err2 := parseID(f[1])
			if err1 != nil || err2 != nil {
				return usageError{}
			}
			_ = c.RecategorizeItem(ctx, item, cat)
			return nil
		}},
		"newcat": {"newcat <nome> <emoji>", "cria uma categoria", func(ctx context.Context, args string) error {
			i := strings.LastIndex(args, " ")
			if i < 0 {
				return usageError{}
			}
			_, _ = c.CreateCategory(ctx, args[:i], args[i+1:])
			return nil
		}},
		"rename": {"rename <nome atual> => <novo nome>", "renomeia um fornecedor", func(ctx context.Context, args string) error {
			oldName, newName, ok := strings.Cut(args, "=>")
			if !ok {
				return usageError{}
			}
			_, err := c.RenameVendor(ctx, strings.TrimSpace(oldName), newName)
			if errors.Is(err, coordinator.ErrNoChange) {
				s.write("Nada a alterar.\n")
			}
			return nil
		}},

		"dash": {"dash [thisMonth|lastMonth|last3Months|thisYear]", "painel do período", func(ctx context.Context, args string) error {
			p := c.ActivePeriod()
			if args != "" {
				var err error
				if p, err = core.ParsePeriod(args); err != nil {
					return usageError{}
				}
			}
			if d, err := c.BuildDashboard(ctx, p); err == nil {
				s.renderDashboard(d)
			}
			return nil
		}},
		"drill": {"drill cat <categoria_id> | drill vendor <nome>", "itens de uma fatia do painel", func(ctx context.Context, args string) error {
			kind, rest, _ := strings.Cut(args, " ")
			rest = strings.TrimSpace(rest)
			var (
				b   core.Breakdown
				err error
			)
			switch kind {
			case "cat":
				id, perr := parseID(rest)
				if perr != nil {
					return perr
				}
				b, err = c.DrillDownCategory(ctx, id)
			case "vendor":
				if rest == "" {
					return usageError{}
				}
				b, err = c.DrillDownVendor(ctx, rest)
			default:
				return usageError{}
			}
			if err == nil {
				s.renderBreakdown(b)
			}
			return nil
		}},

		"scan": {"scan <url>", "lê uma NFC-e pelo link do QR code", func(ctx context.Context, args string) error {
			r, err := c.Scan(ctx, args)
			switch {
			case errors.Is(err, coordinator.ErrNotURL):
				s.write("Isso não parece um link de nota fiscal.\n")
			case errors.Is(err, coordinator.ErrScanLocked):
				s.write("Leitor bloqueado. Use newscan para uma nova leitura.\n")
			case err == nil:
				s.renderReceipt(r, 0)
			}
			return nil
		}},
		"newscan": {"newscan", "libera o leitor para uma nova nota", func(context.Context, string) error {
			c.ResetScan()
			return nil
		}},

		"manual": {"manual vendor <nome> | add <qtd> <valor> <categoria_id> <nome> | rm <n> | show | submit | discard",
			"lançamento manual", s.runManual},
	}
	cmds["exit"] = cmds["quit"]
	return cmds
}

func (s *Shell) runManual(ctx context.Context, args string) error {
	c := s.coord
	sub, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)

	switch sub {
	case "vendor":
		c.SetDraftVendor(rest)
	case "add":
		f := strings.SplitN(rest, " ", 4)
		if len(f) != 4 {
			return usageError{}
		}
		cat, err := strconv.ParseInt(f[2], 10, 64)
		if err != nil {
			return usageError{}
		}
		if len(c.Categories()) == 0 {
			_, _ = c.LoadCategories(ctx)
		}
		if _, err := c.AddDraftItem(ctx, f[3], f[0], f[1], cat); err != nil {
			return nil
		}
	case "rm":
		n, err := strconv.Atoi(rest)
		if err != nil || !c.RemoveDraftItem(n-1) {
			return usageError{}
		}
	case "show":
	case "submit":
		_, _ = c.SubmitManualEntry(ctx)
		return nil
	case "discard":
		c.DiscardDraft()
		return nil
	default:
		return usageError{}
	}
	s.renderDraft(c.Snapshot())
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError{}
	}
	return id, nil
}

func (s *Shell) renderHelp() {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		if name != "exit" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		cmd := s.commands[name]
		fmt.Fprintf(&b, "  %s\n      %s\n", cmd.usage, cmd.help)
	}
	s.write(b.String())
}
