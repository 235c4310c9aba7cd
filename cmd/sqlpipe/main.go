package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kevin-cantwell/sqlpipe/internal/ast"
	"github.com/kevin-cantwell/sqlpipe/internal/config"
	"github.com/kevin-cantwell/sqlpipe/internal/engine"
	"github.com/kevin-cantwell/sqlpipe/internal/output"
	"github.com/kevin-cantwell/sqlpipe/internal/source"
)

var (
	query      = flag.String("q", "", "SQL query to run. Without it sqlpipe starts a prompt.")
	configFile = flag.String("config", "", "YAML file listing sources.")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn or error.")
	sources    config.SourceFlags
)

func init() {
	flag.Var(&sources, "source", "Source as name=uri (stdin, file://x.csv, sqlite://x.db?table=t or a path). Repeatable.")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sqlpipe:", err)
		os.Exit(1)
	}
}

func run() error {
	conf := &config.Config{}
	if *configFile != "" {
		c, err := config.Load(*configFile)
		if err != nil {
			return err
		}
		conf = c
	}
	conf.Merge(&config.Config{Sources: sources, LogLevel: *logLevel})

	logger, err := config.NewLogger(conf.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	srcs, err := conf.Open()
	if err != nil {
		return err
	}
	if *query == "" && readsStdin(srcs) {
		return errors.New("stdin is a source; pass the query with -q")
	}

	env := source.NewEnvironment()
	if err := source.LoadAll(context.Background(), env, srcs...); err != nil {
		return err
	}
	for _, name := range env.GetSourceNames() {
		logger.Info("loaded source",
			zap.String("name", name),
			zap.String("rows", humanize.Comma(int64(env.CountSourceRow(name)))),
		)
	}

	e := engine.New(env, logger)
	w := output.NewJSONWriter(os.Stdout)
	if *query != "" {
		if err := execute(e, w, *query); err != nil {
			return err
		}
		return w.Flush()
	}
	return repl(e, w, env)
}

func readsStdin(srcs []source.Source) bool {
	for _, s := range srcs {
		if _, ok := s.(*source.StdinSource); ok {
			return true
		}
	}
	return false
}

// execute writes each statement's rows as soon as it completes, so the
// output of earlier statements survives a later failure.
func execute(e *engine.Engine, w *output.JSONWriter, sql string) error {
	stmts, err := ast.Parse(sql)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		res, err := e.Execute(stmt)
		if err != nil {
			return err
		}
		for _, row := range res.Rows {
			if err := w.WriteRecord(res.Columns, row); err != nil {
				return err
			}
		}
	}
	return nil
}

func repl(e *engine.Engine, w *output.JSONWriter, env *source.Environment) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "# ",
		HistoryFile:     filepath.Join(os.TempDir(), "sqlpipe.tmp"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer l.Close()

	fmt.Printf("Welcome to sqlpipe. %s loaded.\n", plural(len(env.GetSourceNames()), "source"))
	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				return nil
			}
			continue
		} else if err == io.EOF {
			return nil
		}
		if err != nil {
			fmt.Println("Error while reading line:", err)
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case trimmed == "quit" || trimmed == "exit" || trimmed == "\\q":
			return nil
		case trimmed == "\\dt":
			for _, name := range env.GetSourceNames() {
				fmt.Printf("%s\t%s\n", name, plural(env.CountSourceRow(name), "row"))
			}
			continue
		case strings.HasPrefix(trimmed, "\\p"):
			stmts, err := ast.Parse(strings.TrimSpace(trimmed[len("\\p"):]))
			if err != nil {
				fmt.Println("Error while parsing:", err)
				continue
			}
			for _, stmt := range stmts {
				if plan, err := e.Plan(stmt); err != nil {
					fmt.Printf("%s\n  %v\n", stmt, err)
				} else {
					fmt.Printf("%s\n  %s\n", stmt, plan)
				}
			}
			continue
		}

		err = execute(e, w, trimmed)
		if ferr := w.Flush(); ferr != nil {
			return ferr
		}
		if err != nil {
			fmt.Println("Error:", err)
			continue
		}
		fmt.Println("ok")
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}
